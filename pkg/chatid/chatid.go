// Package chatid derives stable conversation identifiers from participant
// identities. Both sides of a conversation compute the same id without
// coordination, so at most one session document ever exists per pair.
package chatid

import (
	"errors"
	"strings"
)

// Separator joins the two sorted participant ids.
const Separator = "_"

var (
	ErrEmptyParticipant = errors.New("chatid: participant id must not be empty")
	ErrSelfChat         = errors.New("chatid: cannot start a chat with yourself")
)

// Resolve returns the deterministic session id for an unordered pair of
// participant ids: the ids sorted lexicographically and joined with "_".
// Resolve(a, b) == Resolve(b, a) for every valid pair.
func Resolve(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrEmptyParticipant
	}
	if a == b {
		return "", ErrSelfChat
	}
	if b < a {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// Contains reports whether the session id names the given participant.
// Useful before the session document exists, when membership cannot be
// checked against stored participants yet. Ids containing the separator
// cannot be distinguished reliably; those ids never reach this system.
func Contains(sessionId, userId string) bool {
	if userId == "" {
		return false
	}
	return strings.HasPrefix(sessionId, userId+Separator) ||
		strings.HasSuffix(sessionId, Separator+userId)
}
