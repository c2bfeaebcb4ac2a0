package entity

import (
	"context"
	"fmt"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// TransformByKind dispatches to the right Transform* function based on a
// runtime Kind value, returning the decoded entity as a pointer (always
// *Character/*Element/*Puzzle/*TimelineEvent) so callers can use
// GetRelation/SetRelation on the result uniformly.
func TransformByKind(ctx context.Context, dec *decode.Decoder, kind Kind, page *workspace.Page) (interface{}, error) {
	switch kind {
	case KindCharacter:
		c, err := TransformCharacter(ctx, dec, page)
		return &c, err
	case KindElement:
		e, err := TransformElement(ctx, dec, page)
		return &e, err
	case KindPuzzle:
		p, err := TransformPuzzle(ctx, dec, page)
		return &p, err
	case KindTimelineEvent:
		t, err := TransformTimelineEvent(ctx, dec, page)
		return &t, err
	default:
		return nil, fmt.Errorf("unrecognized entity kind %q", kind)
	}
}

// EncodeByKind dispatches to the right Encode* function based on a runtime
// Kind value.
func EncodeByKind(kind Kind, data interface{}, fields []string) (map[string]workspace.Property, error) {
	switch kind {
	case KindCharacter:
		c, ok := data.(*Character)
		if !ok {
			return nil, fmt.Errorf("EncodeByKind: expected *Character, got %T", data)
		}
		return EncodeCharacter(*c, fields), nil
	case KindElement:
		e, ok := data.(*Element)
		if !ok {
			return nil, fmt.Errorf("EncodeByKind: expected *Element, got %T", data)
		}
		return EncodeElement(*e, fields), nil
	case KindPuzzle:
		p, ok := data.(*Puzzle)
		if !ok {
			return nil, fmt.Errorf("EncodeByKind: expected *Puzzle, got %T", data)
		}
		return EncodePuzzle(*p, fields), nil
	case KindTimelineEvent:
		t, ok := data.(*TimelineEvent)
		if !ok {
			return nil, fmt.Errorf("EncodeByKind: expected *TimelineEvent, got %T", data)
		}
		return EncodeTimelineEvent(*t, fields), nil
	default:
		return nil, fmt.Errorf("unrecognized entity kind %q", kind)
	}
}
