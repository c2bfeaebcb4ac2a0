// Package decode implements the Property Decoder: pure functions mapping a
// page's typed property bag into the natural domain value for each known
// property kind, plus the relation-pagination extension that completes a
// "has more" relation property via follow-up retrievals.
package decode

import (
	"context"
	"strings"

	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// RelationCompleter is the subset of the gateway the decoder needs to
// finish a paginated relation property. Declared here (consumer side) so
// the decoder never imports the gateway's retry/rate-limit machinery.
type RelationCompleter interface {
	RetrieveFullRelation(ctx context.Context, pageID, propertyID string, first workspace.Property) ([]string, error)
}

// Decoder turns a page's property bag into domain-ready values.
type Decoder struct {
	gw RelationCompleter
}

func New(gw RelationCompleter) *Decoder {
	return &Decoder{gw: gw}
}

// Text decodes a title or rich_text property into its concatenated plain
// text, or "" if the property is absent (the decoder's missing == empty
// policy).
func Text(prop workspace.Property, present bool) string {
	if !present {
		return ""
	}
	var b strings.Builder
	for _, frag := range prop.RichText {
		b.WriteString(frag.PlainText)
	}
	return b.String()
}

// Option decodes a select or status property to its option name, or ""
// if absent/null.
func Option(prop workspace.Property, present bool) string {
	if !present || prop.Select == nil {
		return ""
	}
	return *prop.Select
}

// MultiSelect decodes a multi_select property to its list of option names.
func MultiSelect(prop workspace.Property, present bool) []string {
	if !present {
		return nil
	}
	return append([]string(nil), prop.MultiSelect...)
}

// Relation decodes a relation property to its full list of normalized
// target ids, completing pagination if the upstream reported "has more".
// This is the decoder's sole suspension point.
func (d *Decoder) Relation(ctx context.Context, pageID, propertyName string, prop workspace.Property, present bool) ([]string, error) {
	if !present {
		return nil, nil
	}
	if !prop.RelationMore {
		return append([]string(nil), prop.RelationIDs...), nil
	}
	return d.gw.RetrieveFullRelation(ctx, pageID, propertyName, prop)
}

// RollupString decodes an array rollup to a list of strings, one per
// title/rich-text, select/status or non-null url element; other element
// kinds are skipped and nested rollups are not descended into. Any rollup
// that is not an array yields nil (RollupNumber handles number rollups).
func RollupString(prop workspace.Property, present bool) []string {
	if !present || prop.Rollup == nil || prop.Rollup.Type != "array" {
		return nil
	}
	out := make([]string, 0, len(prop.Rollup.Array))
	for _, elem := range prop.Rollup.Array {
		switch elem.Kind {
		case workspace.PropertyTitle, workspace.PropertyRichText:
			out = append(out, Text(elem, true))
		case workspace.PropertySelect, workspace.PropertyStatus:
			out = append(out, Option(elem, true))
		case workspace.PropertyURL:
			if elem.URL != nil {
				out = append(out, *elem.URL)
			}
		}
	}
	return out
}

func RollupNumber(prop workspace.Property, present bool) *float64 {
	if !present || prop.Rollup == nil || prop.Rollup.Type != "number" {
		return nil
	}
	return prop.Rollup.Number
}

// Date decodes a date property to its ISO-8601 start value (end/timezone
// dropped).
func Date(prop workspace.Property, present bool) string {
	if !present || prop.DateStart == nil {
		return ""
	}
	return *prop.DateStart
}

// Formula decodes a formula property to whichever scalar variant is set.
func Formula(prop workspace.Property, present bool) interface{} {
	if !present {
		return nil
	}
	switch {
	case prop.FormulaString != nil:
		return *prop.FormulaString
	case prop.FormulaNumber != nil:
		return *prop.FormulaNumber
	case prop.FormulaBool != nil:
		return *prop.FormulaBool
	default:
		return nil
	}
}

// URL decodes a url property, or "" if absent/null.
func URL(prop workspace.Property, present bool) string {
	if !present || prop.URL == nil {
		return ""
	}
	return *prop.URL
}

// Files decodes a files property to its {name, url} pairs.
func Files(prop workspace.Property, present bool) []workspace.FileRef {
	if !present {
		return nil
	}
	return append([]workspace.FileRef(nil), prop.Files...)
}

// Timestamp decodes a last_edited_time/created_time property.
func Timestamp(prop workspace.Property, present bool) string {
	if !present || prop.Timestamp == nil {
		return ""
	}
	return *prop.Timestamp
}
