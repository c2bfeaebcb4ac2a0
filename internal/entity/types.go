// Package entity defines the four normalized domain kinds the mediator
// transforms upstream pages into (Character, Element, Puzzle, TimelineEvent),
// the placeholder node type for unresolved references, and the pure
// transform/encode functions and property-classification tables that keep
// derived properties out of equality comparisons and write paths.
package entity

// Kind identifies one of the four entity kinds, or the synthetic
// placeholder kind the Graph Builder emits for unresolved references.
type Kind string

const (
	KindCharacter     Kind = "character"
	KindElement       Kind = "element"
	KindPuzzle        Kind = "puzzle"
	KindTimelineEvent Kind = "timeline_event"
	KindPlaceholder   Kind = "placeholder"
)

// CharacterKind and CharacterTier are Character's closed enums.
type CharacterKind string

const (
	CharacterNPC    CharacterKind = "NPC"
	CharacterPlayer CharacterKind = "Player"
)

type CharacterTier string

const (
	TierCore      CharacterTier = "Core"
	TierSecondary CharacterTier = "Secondary"
	TierTertiary  CharacterTier = "Tertiary"
)

// Character is one of the four normalized entity kinds.
type Character struct {
	ID                string
	Name              string
	Kind              CharacterKind
	Tier              CharacterTier
	PrimaryAction     string
	Logline           string
	Overview          string
	EmotionTowardsCEO string
	LastEdited        string

	// Mutable direct relations.
	OwnedElements      []string
	AssociatedElements []string
	CharacterPuzzles   []string
	Events             []string

	// Derived, read-only; must never be written back or compared.
	Connections []string
}

// Element is one of the four normalized entity kinds.
type Element struct {
	ID               string
	Name             string
	Description      string
	BasicKind        string
	Status           string
	FirstAvailable   string
	NarrativeThreads []string
	ProductionNotes  string
	ContentLink      string
	FilesMedia       []FileRef
	EmbeddedMetadata EmbeddedMetadata
	LastEdited       string

	// Mutable direct relations.
	Owner               string // empty string = unset
	Container           string
	Contents            []string
	TimelineEvent       string
	RequiredForPuzzles  []string
	RewardedByPuzzles   []string
	ContainerPuzzle     string

	// Derived.
	AssociatedCharacters []string
	PuzzleChain          []string
	IsContainer          bool
}

// FileRef mirrors workspace.FileRef at the domain layer so the entity
// structs hold no wire types from internal/workspace.
type FileRef struct {
	Name string
	URL  string
}

// Puzzle is one of the four normalized entity kinds.
type Puzzle struct {
	ID                  string
	Name                string
	DescriptionSolution string
	AssetLink           string
	LastEdited          string

	// Mutable direct relations.
	PuzzleElements []string
	LockedItem     string
	Rewards        []string
	ParentItem     string
	SubPuzzles     []string

	// Derived.
	Owner            string
	StoryReveals     []string
	Timing           []string
	NarrativeThreads []string
}

// TimelineEvent is one of the four normalized entity kinds.
type TimelineEvent struct {
	ID          string
	Name        string // always a copy of Description
	Description string
	Date        string
	Notes       string
	LastEdited  string

	// Mutable direct relations.
	CharactersInvolved []string
	MemoryEvidence     []string

	// Derived.
	MemTypes          []string
	AssociatedPuzzles []string
}

// PlaceholderNode represents a referenced-but-unresolved id. The Graph
// Builder emits one per dangling reference rather than silently dropping it
// (the pipeline's invariant that references never vanish).
type PlaceholderNode struct {
	ID            string
	ExpectedKind  Kind
	ReferencedBy  []string // "{kind}:{id}" references that pointed at this id
}
