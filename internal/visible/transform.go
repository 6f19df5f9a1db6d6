package visible

import (
	"fmt"
	"strings"
)

// OrdinalMarker is the internal identifier written for every record by
// database builders. Fields containing it are never reported.
const OrdinalMarker = "BL_ORD_ID"

// Transform maps one decoded field to zero or more identifiers.
type Transform func(field string) []string

// ExcludeOrdinal drops fields that contain the ordinal marker.
func ExcludeOrdinal(field string) []string {
	if strings.Contains(field, OrdinalMarker) {
		return nil
	}
	return []string{field}
}

// SplitSpace splits a field on single spaces. Empty tokens are kept, so
// joining the result with " " gives back field.
func SplitSpace(field string) []string {
	return strings.Split(field, " ")
}

// Chain applies transforms left to right; each output of one transform is
// fed to the next.
func Chain(ts ...Transform) Transform {
	return func(field string) []string {
		cur := []string{field}
		for _, t := range ts {
			var next []string
			for _, f := range cur {
				next = append(next, t(f)...)
			}
			cur = next
			if len(cur) == 0 {
				return nil
			}
		}
		return cur
	}
}

// SplitMode selects how decoded fields become identifiers.
type SplitMode uint8

const (
	// SplitNone keeps each field intact.
	SplitNone SplitMode = iota

	// SplitOnSpace splits each field on single spaces.
	SplitOnSpace
)

// String returns the mode name accepted by ParseSplitMode.
func (m SplitMode) String() string {
	switch m {
	case SplitNone:
		return "none"
	case SplitOnSpace:
		return "space"
	default:
		return "unknown"
	}
}

// ParseSplitMode parses "none" or "space".
func ParseSplitMode(s string) (SplitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SplitNone, nil
	case "space":
		return SplitOnSpace, nil
	default:
		return SplitNone, fmt.Errorf("unknown split mode %q (want none or space)", s)
	}
}

// ForMode returns the transform used for identifier extraction: the ordinal
// marker is always excluded, then fields are split when mode asks for it.
func ForMode(mode SplitMode) Transform {
	if mode == SplitOnSpace {
		return Chain(ExcludeOrdinal, SplitSpace)
	}
	return Chain(ExcludeOrdinal)
}

// Identifiers decodes blob and applies t to every field. Empty results are
// not identifiers and are dropped.
func Identifiers(blob []byte, t Transform) ([]string, error) {
	fields, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, id := range t(f) {
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
