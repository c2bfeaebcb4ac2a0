// Package workspace models the upstream "workspace" API's wire shapes: pages,
// property bags, and the handful of property kinds the mediator understands.
// Nothing in this package is domain-specific — Character/Element/Puzzle/
// TimelineEvent semantics live in internal/entity.
package workspace

import (
	"strings"

	"github.com/google/uuid"
)

// NormalizeID canonicalizes an upstream identifier to the 8-4-4-4-12
// hyphenated hex form. Upstream ids sometimes arrive without hyphens; this
// is the single choke point every incoming id passes through before
// comparison or storage.
func NormalizeID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustNormalizeID panics on malformed input; only used in tests and for
// literals known to be well-formed at compile time.
func MustNormalizeID(raw string) string {
	id, err := NormalizeID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// PropertyKind enumerates the upstream property types the decoder understands.
type PropertyKind string

const (
	PropertyTitle           PropertyKind = "title"
	PropertyRichText        PropertyKind = "rich_text"
	PropertySelect          PropertyKind = "select"
	PropertyMultiSelect     PropertyKind = "multi_select"
	PropertyStatus          PropertyKind = "status"
	PropertyRelation        PropertyKind = "relation"
	PropertyRollup          PropertyKind = "rollup"
	PropertyDate            PropertyKind = "date"
	PropertyFormula         PropertyKind = "formula"
	PropertyURL             PropertyKind = "url"
	PropertyFiles           PropertyKind = "files"
	PropertyLastEditedTime  PropertyKind = "last_edited_time"
	PropertyCreatedTime     PropertyKind = "created_time"
)

// RichTextFragment is one segment of a title/rich-text property.
type RichTextFragment struct {
	PlainText string
}

// FileRef is one entry of a files property.
type FileRef struct {
	Name string
	URL  string
}

// RollupValue is the value carried by a rollup property — either an array
// of nested properties (array rollup) or a number.
type RollupValue struct {
	Type   string // "array" or "number"
	Array  []Property
	Number *float64
}

// Property is a single named, typed value on a page. Exactly one of the
// value fields is populated, selected by Kind.
type Property struct {
	Name string
	Kind PropertyKind

	RichText []RichTextFragment // title, rich_text
	Select   *string            // select, status
	MultiSelect []string        // multi_select

	RelationIDs  []string // relation (already-normalized)
	RelationMore bool     // upstream reports more pages of this relation

	Rollup *RollupValue // rollup

	DateStart *string // date (ISO-8601, end/timezone dropped)

	FormulaString *string // formula
	FormulaNumber *float64
	FormulaBool   *bool

	URL *string // url

	Files []FileRef // files

	Timestamp *string // last_edited_time / created_time
}

// Page is one upstream record: an id, its parent database id, and a
// name-keyed property bag.
type Page struct {
	ID         string
	DatabaseID string
	Archived   bool
	Properties map[string]Property
}

// Property looks up a named property, returning ok=false if absent —
// callers use this to distinguish "absent" (decoder substitutes the kind's
// zero value) from "present but empty".
func (p *Page) Property(name string) (Property, bool) {
	prop, ok := p.Properties[name]
	return prop, ok
}
