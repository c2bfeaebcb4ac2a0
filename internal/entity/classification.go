package entity

// MutableRelationFields lists, per kind, the direct-relation fields that are
// writable via the upstream API and therefore valid to compare for change
// detection and to write back through the encoder. Derived relation fields
// (Connections, AssociatedCharacters, PuzzleChain, IsContainer, Owner on
// Puzzle, StoryReveals, Timing, NarrativeThreads on Puzzle, MemTypes,
// AssociatedPuzzles) are computed upstream and MUST NOT appear here. The
// delta comparator (PropertiesEqual) consults this table; the encoders in
// encode.go do not read it and instead list the fields they emit one by one.
var MutableRelationFields = map[Kind][]string{
	KindCharacter:     {"OwnedElements", "AssociatedElements", "CharacterPuzzles", "Events"},
	KindElement:       {"Owner", "Container", "Contents", "TimelineEvent", "RequiredForPuzzles", "RewardedByPuzzles", "ContainerPuzzle"},
	KindPuzzle:        {"PuzzleElements", "LockedItem", "Rewards", "ParentItem", "SubPuzzles"},
	KindTimelineEvent: {"CharactersInvolved", "MemoryEvidence"},
}

// ScalarFields lists, per kind, the mutable scalar fields participating in
// property-level equality (LastEdited is deliberately excluded: callers
// compare it separately, one level up, before falling back to this table).
var ScalarFields = map[Kind][]string{
	KindCharacter:     {"Name", "Kind", "Tier", "PrimaryAction", "Logline", "Overview", "EmotionTowardsCEO"},
	KindElement:       {"Name", "Description", "BasicKind", "Status", "FirstAvailable", "NarrativeThreads", "ProductionNotes", "ContentLink", "FilesMedia"},
	KindPuzzle:        {"Name", "DescriptionSolution", "AssetLink"},
	KindTimelineEvent: {"Name", "Description", "Date", "Notes"},
}

// RelationPair is one designated inverse-relation pair — used by
// both the Relationship Synthesizer and the Inverse-Relation Maintainer so
// the two never drift out of sync with each other.
type RelationPair struct {
	LeftKind      Kind
	LeftField     string
	RightKind     Kind
	RightField    string
	ManyToMany    bool // false => 1-to-N from Left to Right
}

// RelationPairs enumerates every designated inverse pair.
// Iteration order is fixed (slice, not map) so synthesis and
// maintenance are deterministic.
var RelationPairs = []RelationPair{
	{LeftKind: KindCharacter, LeftField: "OwnedElements", RightKind: KindElement, RightField: "Owner", ManyToMany: false},
	{LeftKind: KindCharacter, LeftField: "Events", RightKind: KindTimelineEvent, RightField: "CharactersInvolved", ManyToMany: true},
	{LeftKind: KindElement, LeftField: "Container", RightKind: KindElement, RightField: "Contents", ManyToMany: false},
	{LeftKind: KindElement, LeftField: "TimelineEvent", RightKind: KindTimelineEvent, RightField: "MemoryEvidence", ManyToMany: false},
	{LeftKind: KindElement, LeftField: "RequiredForPuzzles", RightKind: KindPuzzle, RightField: "PuzzleElements", ManyToMany: true},
	{LeftKind: KindElement, LeftField: "RewardedByPuzzles", RightKind: KindPuzzle, RightField: "Rewards", ManyToMany: true},
	{LeftKind: KindPuzzle, LeftField: "ParentItem", RightKind: KindPuzzle, RightField: "SubPuzzles", ManyToMany: false},
}
