package entity

import "github.com/kestrel-labs/workspacegraph/internal/workspace"

// textProperty builds a title/rich_text property from plain text.
func textProperty(kind workspace.PropertyKind, text string) workspace.Property {
	return workspace.Property{Kind: kind, RichText: []workspace.RichTextFragment{{PlainText: text}}}
}

func selectProperty(kind workspace.PropertyKind, value string) workspace.Property {
	v := value
	return workspace.Property{Kind: kind, Select: &v}
}

func relationProperty(ids []string) workspace.Property {
	return workspace.Property{Kind: workspace.PropertyRelation, RelationIDs: append([]string(nil), ids...)}
}

func urlProperty(value string) workspace.Property {
	v := value
	return workspace.Property{Kind: workspace.PropertyURL, URL: &v}
}

// fieldSet is a small membership helper over the list of field names a
// caller asked to change — the encoder only ever emits properties for
// fields present in this set, which is what keeps a partial update partial.
type fieldSet map[string]bool

func newFieldSet(fields []string) fieldSet {
	fs := make(fieldSet, len(fields))
	for _, f := range fields {
		fs[f] = true
	}
	return fs
}

// EncodeCharacter turns a Character plus the set of fields the caller
// mentioned into a property bag ready for updatePage/createPage. Derived
// fields (Connections) are never emitted even if present in fields, per the
// derived-versus-mutable discipline.
func EncodeCharacter(c Character, fields []string) map[string]workspace.Property {
	fs := newFieldSet(fields)
	out := map[string]workspace.Property{}

	if fs["Name"] {
		out[characterNames["Name"]] = textProperty(workspace.PropertyTitle, c.Name)
	}
	if fs["Kind"] {
		out[characterNames["Kind"]] = selectProperty(workspace.PropertySelect, string(c.Kind))
	}
	if fs["Tier"] {
		out[characterNames["Tier"]] = selectProperty(workspace.PropertySelect, string(c.Tier))
	}
	if fs["PrimaryAction"] {
		out[characterNames["PrimaryAction"]] = textProperty(workspace.PropertyRichText, c.PrimaryAction)
	}
	if fs["Logline"] {
		out[characterNames["Logline"]] = textProperty(workspace.PropertyRichText, c.Logline)
	}
	if fs["Overview"] {
		out[characterNames["Overview"]] = textProperty(workspace.PropertyRichText, c.Overview)
	}
	if fs["EmotionTowardsCEO"] {
		out[characterNames["EmotionTowardsCEO"]] = textProperty(workspace.PropertyRichText, c.EmotionTowardsCEO)
	}
	if fs["OwnedElements"] {
		out[characterNames["OwnedElements"]] = relationProperty(c.OwnedElements)
	}
	if fs["CharacterPuzzles"] {
		out[characterNames["CharacterPuzzles"]] = relationProperty(c.CharacterPuzzles)
	}
	if fs["Events"] {
		out[characterNames["Events"]] = relationProperty(c.Events)
	}
	// AssociatedElements is a mutable field on Character but has no
	// designated inverse pair; still user-settable.
	if fs["AssociatedElements"] {
		out[characterNames["AssociatedElements"]] = relationProperty(c.AssociatedElements)
	}

	return out
}

// EncodeElement turns an Element plus the set of changed fields into a
// property bag. Description is written back verbatim (including any SF_*
// markers) since Element.Description always holds the full original text.
func EncodeElement(e Element, fields []string) map[string]workspace.Property {
	fs := newFieldSet(fields)
	out := map[string]workspace.Property{}

	if fs["Name"] {
		out[elementNames["Name"]] = textProperty(workspace.PropertyTitle, e.Name)
	}
	if fs["Description"] {
		out[elementNames["Description"]] = textProperty(workspace.PropertyRichText, e.Description)
	}
	if fs["BasicKind"] {
		out[elementNames["BasicKind"]] = selectProperty(workspace.PropertySelect, e.BasicKind)
	}
	if fs["Status"] {
		out[elementNames["Status"]] = selectProperty(workspace.PropertyStatus, e.Status)
	}
	if fs["FirstAvailable"] {
		out[elementNames["FirstAvailable"]] = selectProperty(workspace.PropertySelect, e.FirstAvailable)
	}
	if fs["NarrativeThreads"] {
		out[elementNames["NarrativeThreads"]] = workspace.Property{Kind: workspace.PropertyMultiSelect, MultiSelect: e.NarrativeThreads}
	}
	if fs["ProductionNotes"] {
		out[elementNames["ProductionNotes"]] = textProperty(workspace.PropertyRichText, e.ProductionNotes)
	}
	if fs["ContentLink"] {
		out[elementNames["ContentLink"]] = urlProperty(e.ContentLink)
	}
	if fs["Owner"] {
		var ids []string
		if e.Owner != "" {
			ids = []string{e.Owner}
		}
		out[elementNames["Owner"]] = relationProperty(ids)
	}
	if fs["Container"] {
		var ids []string
		if e.Container != "" {
			ids = []string{e.Container}
		}
		out[elementNames["Container"]] = relationProperty(ids)
	}
	if fs["Contents"] {
		out[elementNames["Contents"]] = relationProperty(e.Contents)
	}
	if fs["TimelineEvent"] {
		var ids []string
		if e.TimelineEvent != "" {
			ids = []string{e.TimelineEvent}
		}
		out[elementNames["TimelineEvent"]] = relationProperty(ids)
	}
	if fs["RequiredForPuzzles"] {
		out[elementNames["RequiredForPuzzles"]] = relationProperty(e.RequiredForPuzzles)
	}
	if fs["RewardedByPuzzles"] {
		out[elementNames["RewardedByPuzzles"]] = relationProperty(e.RewardedByPuzzles)
	}
	if fs["ContainerPuzzle"] {
		var ids []string
		if e.ContainerPuzzle != "" {
			ids = []string{e.ContainerPuzzle}
		}
		out[elementNames["ContainerPuzzle"]] = relationProperty(ids)
	}

	return out
}

// EncodePuzzle turns a Puzzle plus the set of changed fields into a
// property bag.
func EncodePuzzle(p Puzzle, fields []string) map[string]workspace.Property {
	fs := newFieldSet(fields)
	out := map[string]workspace.Property{}

	if fs["Name"] {
		out[puzzleNames["Name"]] = textProperty(workspace.PropertyTitle, p.Name)
	}
	if fs["DescriptionSolution"] {
		out[puzzleNames["DescriptionSolution"]] = textProperty(workspace.PropertyRichText, p.DescriptionSolution)
	}
	if fs["AssetLink"] {
		out[puzzleNames["AssetLink"]] = urlProperty(p.AssetLink)
	}
	if fs["PuzzleElements"] {
		out[puzzleNames["PuzzleElements"]] = relationProperty(p.PuzzleElements)
	}
	if fs["LockedItem"] {
		var ids []string
		if p.LockedItem != "" {
			ids = []string{p.LockedItem}
		}
		out[puzzleNames["LockedItem"]] = relationProperty(ids)
	}
	if fs["Rewards"] {
		out[puzzleNames["Rewards"]] = relationProperty(p.Rewards)
	}
	if fs["ParentItem"] {
		var ids []string
		if p.ParentItem != "" {
			ids = []string{p.ParentItem}
		}
		out[puzzleNames["ParentItem"]] = relationProperty(ids)
	}
	if fs["SubPuzzles"] {
		out[puzzleNames["SubPuzzles"]] = relationProperty(p.SubPuzzles)
	}

	return out
}

// EncodeTimelineEvent turns a TimelineEvent plus the set of changed fields
// into a property bag.
func EncodeTimelineEvent(t TimelineEvent, fields []string) map[string]workspace.Property {
	fs := newFieldSet(fields)
	out := map[string]workspace.Property{}

	if fs["Description"] {
		out[timelineEventNames["Description"]] = textProperty(workspace.PropertyRichText, t.Description)
	}
	if fs["Date"] {
		start := t.Date
		out[timelineEventNames["Date"]] = workspace.Property{Kind: workspace.PropertyDate, DateStart: &start}
	}
	if fs["Notes"] {
		out[timelineEventNames["Notes"]] = textProperty(workspace.PropertyRichText, t.Notes)
	}
	if fs["CharactersInvolved"] {
		out[timelineEventNames["CharactersInvolved"]] = relationProperty(t.CharactersInvolved)
	}
	if fs["MemoryEvidence"] {
		out[timelineEventNames["MemoryEvidence"]] = relationProperty(t.MemoryEvidence)
	}

	return out
}
