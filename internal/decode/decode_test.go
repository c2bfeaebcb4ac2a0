package decode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

func strPtr(s string) *string   { return &s }
func fltPtr(f float64) *float64 { return &f }

func TestTextConcatenatesFragmentsAndTreatsAbsentAsEmpty(t *testing.T) {
	prop := workspace.Property{RichText: []workspace.RichTextFragment{{PlainText: "Hello "}, {PlainText: "World"}}}
	assert.Equal(t, "Hello World", Text(prop, true))
	assert.Equal(t, "", Text(workspace.Property{}, false))
}

func TestOptionReturnsSelectValueOrEmpty(t *testing.T) {
	prop := workspace.Property{Select: strPtr("Active")}
	assert.Equal(t, "Active", Option(prop, true))
	assert.Equal(t, "", Option(workspace.Property{}, true))
	assert.Equal(t, "", Option(prop, false))
}

func TestMultiSelectReturnsCopyNotAlias(t *testing.T) {
	prop := workspace.Property{MultiSelect: []string{"a", "b"}}
	out := MultiSelect(prop, true)
	assert.Equal(t, []string{"a", "b"}, out)
	out[0] = "mutated"
	assert.Equal(t, "a", prop.MultiSelect[0], "MultiSelect must return a copy, not alias the property's backing array")
}

func TestMultiSelectAbsentReturnsNil(t *testing.T) {
	assert.Nil(t, MultiSelect(workspace.Property{MultiSelect: []string{"a"}}, false))
}

func TestRollupStringCollectsArrayElementsByKind(t *testing.T) {
	prop := workspace.Property{Rollup: &workspace.RollupValue{
		Type: "array",
		Array: []workspace.Property{
			{Kind: workspace.PropertyTitle, RichText: []workspace.RichTextFragment{{PlainText: "Locket"}}},
			{Kind: workspace.PropertySelect, Select: strPtr("Ready")},
			{Kind: workspace.PropertyURL, URL: strPtr("https://example.com")},
		},
	}}
	out := RollupString(prop, true)
	assert.Equal(t, []string{"Locket", "Ready", "https://example.com"}, out)
}

func TestRollupStringWrongTypeReturnsNil(t *testing.T) {
	prop := workspace.Property{Rollup: &workspace.RollupValue{Type: "number", Number: fltPtr(3)}}
	assert.Nil(t, RollupString(prop, true))
}

func TestRollupNumberReturnsScalar(t *testing.T) {
	prop := workspace.Property{Rollup: &workspace.RollupValue{Type: "number", Number: fltPtr(42)}}
	got := RollupNumber(prop, true)
	require.NotNil(t, got)
	assert.Equal(t, float64(42), *got)
}

func TestRollupNumberWrongTypeReturnsNil(t *testing.T) {
	prop := workspace.Property{Rollup: &workspace.RollupValue{Type: "array"}}
	assert.Nil(t, RollupNumber(prop, true))
}

func TestDateReturnsStartDroppingEndAndTimezone(t *testing.T) {
	prop := workspace.Property{DateStart: strPtr("2026-01-01")}
	assert.Equal(t, "2026-01-01", Date(prop, true))
	assert.Equal(t, "", Date(workspace.Property{}, true))
}

func TestFormulaReturnsWhicheverVariantIsSet(t *testing.T) {
	assert.Equal(t, "text", Formula(workspace.Property{FormulaString: strPtr("text")}, true))
	assert.Equal(t, float64(7), Formula(workspace.Property{FormulaNumber: fltPtr(7)}, true))
	assert.Equal(t, true, Formula(workspace.Property{FormulaBool: boolPtr(true)}, true))
	assert.Nil(t, Formula(workspace.Property{}, true))
	assert.Nil(t, Formula(workspace.Property{FormulaString: strPtr("text")}, false))
}

func boolPtr(b bool) *bool { return &b }

func TestURLReturnsValueOrEmpty(t *testing.T) {
	prop := workspace.Property{URL: strPtr("https://example.com")}
	assert.Equal(t, "https://example.com", URL(prop, true))
	assert.Equal(t, "", URL(workspace.Property{}, true))
}

func TestFilesReturnsCopyOfRefs(t *testing.T) {
	prop := workspace.Property{Files: []workspace.FileRef{{Name: "a.png", URL: "http://x/a.png"}}}
	out := Files(prop, true)
	require.Len(t, out, 1)
	assert.Equal(t, "a.png", out[0].Name)
	assert.Nil(t, Files(workspace.Property{Files: []workspace.FileRef{{Name: "a.png"}}}, false))
}

func TestTimestampReturnsValueOrEmpty(t *testing.T) {
	prop := workspace.Property{Timestamp: strPtr("2026-07-29T00:00:00Z")}
	assert.Equal(t, "2026-07-29T00:00:00Z", Timestamp(prop, true))
	assert.Equal(t, "", Timestamp(workspace.Property{}, true))
}

// fakeCompleter scripts RetrieveFullRelation's response for pagination tests.
type fakeCompleter struct {
	ids   []string
	err   error
	calls int
}

func (f *fakeCompleter) RetrieveFullRelation(ctx context.Context, pageID, propertyID string, first workspace.Property) ([]string, error) {
	f.calls++
	return f.ids, f.err
}

func TestRelationReturnsDirectIDsWhenNotPaginated(t *testing.T) {
	d := New(&fakeCompleter{})
	prop := workspace.Property{RelationIDs: []string{"a", "b"}, RelationMore: false}

	ids, err := d.Relation(context.Background(), "page-1", "Owned Elements", prop, true)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRelationDelegatesToCompleterWhenPaginated(t *testing.T) {
	fc := &fakeCompleter{ids: []string{"a", "b", "c"}}
	d := New(fc)
	prop := workspace.Property{RelationIDs: []string{"a", "b"}, RelationMore: true}

	ids, err := d.Relation(context.Background(), "page-1", "Owned Elements", prop, true)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 1, fc.calls)
}

func TestRelationAbsentReturnsNilWithoutCallingCompleter(t *testing.T) {
	fc := &fakeCompleter{ids: []string{"a"}}
	d := New(fc)

	ids, err := d.Relation(context.Background(), "page-1", "Owned Elements", workspace.Property{}, false)

	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, 0, fc.calls)
}

func TestRelationPropagatesCompleterError(t *testing.T) {
	fc := &fakeCompleter{err: assertError{}}
	d := New(fc)
	prop := workspace.Property{RelationMore: true}

	_, err := d.Relation(context.Background(), "page-1", "Owned Elements", prop, true)

	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "completer failed" }
