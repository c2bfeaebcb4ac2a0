package entity

import (
	"regexp"
	"strconv"
	"strings"
)

// EmbeddedMetadata is the typed sub-record parsed out of an Element
// description's free-text markers. The original text is preserved verbatim
// alongside the parsed fields so round-tripping through the encoder loses
// nothing (T6).
type EmbeddedMetadata struct {
	RawText      string
	RFID         string
	ValueRating  int // 0 = absent
	MemoryType   string
	GroupName    string
	GroupCount   int // 0 = absent, 1 if marker present without an explicit "xN"
}

var (
	rfidPattern        = regexp.MustCompile(`SF_RFID:\s*\[([^\]]*)\]`)
	valueRatingPattern = regexp.MustCompile(`SF_ValueRating:\s*\[([1-5])\]`)
	memoryTypePattern  = regexp.MustCompile(`SF_MemoryType:\s*\[(Personal|Business|Technical)\]`)
	groupPattern       = regexp.MustCompile(`SF_Group:\s*\[([^\]()]+?)(?:\s*\(x(\d+)\))?\]`)
)

// ParseEmbeddedMetadata scans an element description for SF_* markers and
// returns a typed sub-record. RawText always holds the unmodified input so
// the encoder can re-emit it unchanged.
func ParseEmbeddedMetadata(description string) EmbeddedMetadata {
	meta := EmbeddedMetadata{RawText: description}

	if m := rfidPattern.FindStringSubmatch(description); m != nil {
		meta.RFID = strings.TrimSpace(m[1])
	}
	if m := valueRatingPattern.FindStringSubmatch(description); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta.ValueRating = n
		}
	}
	if m := memoryTypePattern.FindStringSubmatch(description); m != nil {
		meta.MemoryType = m[1]
	}
	if m := groupPattern.FindStringSubmatch(description); m != nil {
		meta.GroupName = strings.TrimSpace(m[1])
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil {
				meta.GroupCount = n
			}
		} else {
			meta.GroupCount = 1
		}
	}

	return meta
}

// Description returns the verbatim original text the metadata was parsed
// from — the encoder writes this back unchanged rather than reconstructing
// markers from the parsed fields, which is what makes T6 (byte-for-byte
// round trip) hold even if a future parser revision changes formatting.
func (m EmbeddedMetadata) Description() string {
	return m.RawText
}
