package entity

import (
	"context"
	"fmt"

	"github.com/kestrel-labs/workspacegraph/internal/decode"
	"github.com/kestrel-labs/workspacegraph/internal/workspace"
)

// The *Names tables centralize, per kind, the upstream property name for every
// field on the entity — a single lookup table instead of
// name strings scattered through the codebase.
var characterNames = map[string]string{
	"Name": "Name", "Kind": "Type", "Tier": "Tier", "PrimaryAction": "Primary Action",
	"Logline": "Logline", "Overview": "Overview", "EmotionTowardsCEO": "Emotion Towards CEO",
	"LastEdited": "Last Edited",
	"OwnedElements": "Owned Elements", "AssociatedElements": "Associated Elements",
	"CharacterPuzzles": "Character Puzzles", "Events": "Events",
	"Connections": "Connections",
}

var elementNames = map[string]string{
	"Name": "Name", "Description": "Description", "BasicKind": "Basic Type",
	"Status": "Status", "FirstAvailable": "First Available",
	"NarrativeThreads": "Narrative Threads", "ProductionNotes": "Production Notes",
	"ContentLink": "Content Link", "FilesMedia": "Files & Media", "LastEdited": "Last Edited",
	"Owner": "Owner", "Container": "Container", "Contents": "Contents",
	"TimelineEvent": "Timeline Event", "RequiredForPuzzles": "Required For Puzzle",
	"RewardedByPuzzles": "Rewarded By Puzzle", "ContainerPuzzle": "Container Puzzle",
	"AssociatedCharacters": "Associated Characters", "PuzzleChain": "Puzzle Chain",
	"IsContainer": "Container?",
}

var puzzleNames = map[string]string{
	"Name": "Puzzle", "DescriptionSolution": "Description/Solution", "AssetLink": "Asset Link",
	"LastEdited": "Last Edited",
	"PuzzleElements": "Puzzle Elements", "LockedItem": "Locked Item", "Rewards": "Rewards",
	"ParentItem": "Parent Item", "SubPuzzles": "Sub-Puzzles",
	"Owner": "Owner", "StoryReveals": "Story Reveals", "Timing": "Timing",
	"NarrativeThreads": "Narrative Threads",
}

var timelineEventNames = map[string]string{
	"Description": "Description", "Date": "Date", "Notes": "Notes", "LastEdited": "Last Edited",
	"CharactersInvolved": "Characters Involved", "MemoryEvidence": "Memory/Evidence",
	"MemTypes": "Mem Type", "AssociatedPuzzles": "Associated Puzzles",
}

func prop(page *workspace.Page, name string) (workspace.Property, bool) {
	return page.Property(name)
}

// TransformCharacter decodes a Character page into a normalized Character,
// completing any paginated relation properties via dec.
func TransformCharacter(ctx context.Context, dec *decode.Decoder, page *workspace.Page) (Character, error) {
	id, err := workspace.NormalizeID(page.ID)
	if err != nil {
		return Character{}, fmt.Errorf("normalizing character id %q: %w", page.ID, err)
	}
	c := Character{ID: id}

	p, ok := prop(page, characterNames["Name"])
	c.Name = decode.Text(p, ok)

	p, ok = prop(page, characterNames["Kind"])
	c.Kind = CharacterKind(decode.Option(p, ok))

	p, ok = prop(page, characterNames["Tier"])
	c.Tier = CharacterTier(decode.Option(p, ok))

	p, ok = prop(page, characterNames["PrimaryAction"])
	c.PrimaryAction = decode.Text(p, ok)

	p, ok = prop(page, characterNames["Logline"])
	c.Logline = decode.Text(p, ok)

	p, ok = prop(page, characterNames["Overview"])
	c.Overview = decode.Text(p, ok)

	p, ok = prop(page, characterNames["EmotionTowardsCEO"])
	c.EmotionTowardsCEO = decode.Text(p, ok)

	p, ok = prop(page, characterNames["LastEdited"])
	c.LastEdited = decode.Timestamp(p, ok)

	if c.OwnedElements, err = relationField(ctx, dec, page, characterNames["OwnedElements"]); err != nil {
		return Character{}, err
	}
	if c.AssociatedElements, err = relationField(ctx, dec, page, characterNames["AssociatedElements"]); err != nil {
		return Character{}, err
	}
	if c.CharacterPuzzles, err = relationField(ctx, dec, page, characterNames["CharacterPuzzles"]); err != nil {
		return Character{}, err
	}
	if c.Events, err = relationField(ctx, dec, page, characterNames["Events"]); err != nil {
		return Character{}, err
	}
	if c.Connections, err = relationField(ctx, dec, page, characterNames["Connections"]); err != nil {
		return Character{}, err
	}

	return c, nil
}

// TransformElement decodes an Element page, including its embedded-metadata
// markers parsed out of Description.
func TransformElement(ctx context.Context, dec *decode.Decoder, page *workspace.Page) (Element, error) {
	id, err := workspace.NormalizeID(page.ID)
	if err != nil {
		return Element{}, fmt.Errorf("normalizing element id %q: %w", page.ID, err)
	}
	e := Element{ID: id}

	p, ok := prop(page, elementNames["Name"])
	e.Name = decode.Text(p, ok)

	p, ok = prop(page, elementNames["Description"])
	e.Description = decode.Text(p, ok)
	e.EmbeddedMetadata = ParseEmbeddedMetadata(e.Description)

	p, ok = prop(page, elementNames["BasicKind"])
	e.BasicKind = decode.Option(p, ok)

	p, ok = prop(page, elementNames["Status"])
	e.Status = decode.Option(p, ok)

	p, ok = prop(page, elementNames["FirstAvailable"])
	e.FirstAvailable = decode.Option(p, ok)

	p, ok = prop(page, elementNames["NarrativeThreads"])
	e.NarrativeThreads = decode.MultiSelect(p, ok)

	p, ok = prop(page, elementNames["ProductionNotes"])
	e.ProductionNotes = decode.Text(p, ok)

	p, ok = prop(page, elementNames["ContentLink"])
	e.ContentLink = decode.URL(p, ok)

	p, ok = prop(page, elementNames["FilesMedia"])
	for _, f := range decode.Files(p, ok) {
		e.FilesMedia = append(e.FilesMedia, FileRef{Name: f.Name, URL: f.URL})
	}

	p, ok = prop(page, elementNames["LastEdited"])
	e.LastEdited = decode.Timestamp(p, ok)

	owner, err := relationField(ctx, dec, page, elementNames["Owner"])
	if err != nil {
		return Element{}, err
	}
	if len(owner) > 0 {
		e.Owner = owner[0]
	}

	container, err := relationField(ctx, dec, page, elementNames["Container"])
	if err != nil {
		return Element{}, err
	}
	if len(container) > 0 {
		e.Container = container[0]
	}

	if e.Contents, err = relationField(ctx, dec, page, elementNames["Contents"]); err != nil {
		return Element{}, err
	}

	timelineEvt, err := relationField(ctx, dec, page, elementNames["TimelineEvent"])
	if err != nil {
		return Element{}, err
	}
	if len(timelineEvt) > 0 {
		e.TimelineEvent = timelineEvt[0]
	}

	if e.RequiredForPuzzles, err = relationField(ctx, dec, page, elementNames["RequiredForPuzzles"]); err != nil {
		return Element{}, err
	}
	if e.RewardedByPuzzles, err = relationField(ctx, dec, page, elementNames["RewardedByPuzzles"]); err != nil {
		return Element{}, err
	}

	containerPuzzle, err := relationField(ctx, dec, page, elementNames["ContainerPuzzle"])
	if err != nil {
		return Element{}, err
	}
	if len(containerPuzzle) > 0 {
		e.ContainerPuzzle = containerPuzzle[0]
	}

	if e.AssociatedCharacters, err = relationField(ctx, dec, page, elementNames["AssociatedCharacters"]); err != nil {
		return Element{}, err
	}
	if e.PuzzleChain, err = relationField(ctx, dec, page, elementNames["PuzzleChain"]); err != nil {
		return Element{}, err
	}

	p, ok = prop(page, elementNames["IsContainer"])
	e.IsContainer = decode.Option(p, ok) == "true" || len(e.Contents) > 0

	return e, nil
}

// TransformPuzzle decodes a Puzzle page.
func TransformPuzzle(ctx context.Context, dec *decode.Decoder, page *workspace.Page) (Puzzle, error) {
	id, err := workspace.NormalizeID(page.ID)
	if err != nil {
		return Puzzle{}, fmt.Errorf("normalizing puzzle id %q: %w", page.ID, err)
	}
	pz := Puzzle{ID: id}

	p, ok := prop(page, puzzleNames["Name"])
	pz.Name = decode.Text(p, ok)

	p, ok = prop(page, puzzleNames["DescriptionSolution"])
	pz.DescriptionSolution = decode.Text(p, ok)

	p, ok = prop(page, puzzleNames["AssetLink"])
	pz.AssetLink = decode.URL(p, ok)

	p, ok = prop(page, puzzleNames["LastEdited"])
	pz.LastEdited = decode.Timestamp(p, ok)

	if pz.PuzzleElements, err = relationField(ctx, dec, page, puzzleNames["PuzzleElements"]); err != nil {
		return Puzzle{}, err
	}

	locked, err := relationField(ctx, dec, page, puzzleNames["LockedItem"])
	if err != nil {
		return Puzzle{}, err
	}
	if len(locked) > 0 {
		pz.LockedItem = locked[0]
	}

	if pz.Rewards, err = relationField(ctx, dec, page, puzzleNames["Rewards"]); err != nil {
		return Puzzle{}, err
	}

	parent, err := relationField(ctx, dec, page, puzzleNames["ParentItem"])
	if err != nil {
		return Puzzle{}, err
	}
	if len(parent) > 0 {
		pz.ParentItem = parent[0]
	}

	if pz.SubPuzzles, err = relationField(ctx, dec, page, puzzleNames["SubPuzzles"]); err != nil {
		return Puzzle{}, err
	}

	owner, err := relationField(ctx, dec, page, puzzleNames["Owner"])
	if err != nil {
		return Puzzle{}, err
	}
	if len(owner) > 0 {
		pz.Owner = owner[0]
	}

	if pz.StoryReveals, err = relationField(ctx, dec, page, puzzleNames["StoryReveals"]); err != nil {
		return Puzzle{}, err
	}
	if pz.Timing, err = relationField(ctx, dec, page, puzzleNames["Timing"]); err != nil {
		return Puzzle{}, err
	}

	p, ok = prop(page, puzzleNames["NarrativeThreads"])
	pz.NarrativeThreads = decode.MultiSelect(p, ok)

	return pz, nil
}

// TransformTimelineEvent decodes a TimelineEvent page. Name is always set to
// Description; no separate title property is read.
func TransformTimelineEvent(ctx context.Context, dec *decode.Decoder, page *workspace.Page) (TimelineEvent, error) {
	id, err := workspace.NormalizeID(page.ID)
	if err != nil {
		return TimelineEvent{}, fmt.Errorf("normalizing timeline event id %q: %w", page.ID, err)
	}
	t := TimelineEvent{ID: id}

	p, ok := prop(page, timelineEventNames["Description"])
	t.Description = decode.Text(p, ok)
	t.Name = t.Description

	p, ok = prop(page, timelineEventNames["Date"])
	t.Date = decode.Date(p, ok)

	p, ok = prop(page, timelineEventNames["Notes"])
	t.Notes = decode.Text(p, ok)

	p, ok = prop(page, timelineEventNames["LastEdited"])
	t.LastEdited = decode.Timestamp(p, ok)

	if t.CharactersInvolved, err = relationField(ctx, dec, page, timelineEventNames["CharactersInvolved"]); err != nil {
		return TimelineEvent{}, err
	}
	if t.MemoryEvidence, err = relationField(ctx, dec, page, timelineEventNames["MemoryEvidence"]); err != nil {
		return TimelineEvent{}, err
	}

	p, ok = prop(page, timelineEventNames["MemTypes"])
	t.MemTypes = decode.MultiSelect(p, ok)

	if t.AssociatedPuzzles, err = relationField(ctx, dec, page, timelineEventNames["AssociatedPuzzles"]); err != nil {
		return TimelineEvent{}, err
	}

	return t, nil
}

func relationField(ctx context.Context, dec *decode.Decoder, page *workspace.Page, name string) ([]string, error) {
	p, ok := prop(page, name)
	return dec.Relation(ctx, page.ID, name, p, ok)
}
