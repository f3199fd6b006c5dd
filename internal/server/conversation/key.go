// Package conversation derives and parses the canonical key identifying a
// direct or group chat's message stream.
package conversation

import (
	"strings"

	"github.com/parleyhq/parley/internal/common"
)

const (
	directPrefix = "DIRECT"
	groupPrefix  = "GROUP"
	separator    = "#"
)

// Kind distinguishes the two conversation families.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// DirectKey derives the canonical key for a two-party conversation. Both
// identifiers are lowercased and sorted, so DirectKey(a, b) == DirectKey(b, a)
// regardless of argument order or case.
func DirectKey(a, b string) string {
	a = Normalize(a)
	b = Normalize(b)
	if b < a {
		a, b = b, a
	}
	return directPrefix + separator + a + separator + b
}

// GroupKey derives the canonical key for a group conversation. The group
// identifier is already globally unique; the prefix keeps the namespace
// consistent with direct keys.
func GroupKey(groupID string) string {
	return groupPrefix + separator + groupID
}

// Normalize lowercases and trims a member identifier. Applied uniformly at
// every boundary so that key derivation and membership tests agree.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Key is a parsed conversation key.
type Key struct {
	Kind Kind
	// Participants holds the two member ids for a direct key, in canonical order.
	Participants [2]string
	// GroupID holds the group identifier for a group key.
	GroupID string
}

// Parse splits a conversation key back into its parts. Malformed keys return
// common.ErrValidation.
func Parse(key string) (*Key, error) {
	parts := strings.Split(key, separator)
	switch {
	case len(parts) == 3 && parts[0] == directPrefix && parts[1] != "" && parts[2] != "":
		// Accept unsorted or mixed-case spellings but canonicalize the
		// participants, so every spelling names the same stream.
		a, b := Normalize(parts[1]), Normalize(parts[2])
		if b < a {
			a, b = b, a
		}
		return &Key{Kind: KindDirect, Participants: [2]string{a, b}}, nil
	case len(parts) == 2 && parts[0] == groupPrefix && parts[1] != "":
		return &Key{Kind: KindGroup, GroupID: parts[1]}, nil
	default:
		return nil, common.ErrValidation
	}
}

// HasParticipant reports whether the given member takes part in the
// conversation identified by a direct key. Group membership is checked
// against the group store, not here.
func (k *Key) HasParticipant(memberID string) bool {
	if k.Kind != KindDirect {
		return false
	}
	id := Normalize(memberID)
	return k.Participants[0] == id || k.Participants[1] == id
}
