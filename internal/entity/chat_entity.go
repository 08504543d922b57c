package entity

import (
	"fmt"
	"time"
)

// UnknownParticipantName is the sentinel used when none of the legacy
// document shapes carried a display name for the other participant.
const UnknownParticipantName = "unknown"

// Participant is a denormalized snapshot of a user's display info, copied
// into the session document at creation time. It is a cache, not a source
// of truth; it may go stale relative to the live profile.
type Participant struct {
	Id    string
	Name  string
	Image string
}

// Session is the canonical in-memory form of a two-party conversation.
// All three historical document shapes normalize into this one struct
// before any business logic touches them.
type Session struct {
	Id              string
	Participants    []Participant
	LastMessageText string
	LastMessageAt   int64 // unix ms
	TypingUserId    string
	TypingUserName  string
	TypingAt        int64 // unix ms, stamped on every typing write
	CreatedAt       int64 // unix ms, write-once
}

// HasParticipant reports whether the given user id is part of this session.
func (s *Session) HasParticipant(userId string) bool {
	for _, p := range s.Participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}

// Other resolves the participant that is not the viewer. The second return
// is false when the other side could not be identified at all.
func (s *Session) Other(viewerId string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.Id != viewerId && p.Id != "" {
			return p, true
		}
	}
	return Participant{}, false
}

// TypingIndicator renders the presence line for the given viewer, or ""
// when nothing should be shown. The viewer never sees their own typing
// signal echoed back, and a signal older than ttl reads as cleared even
// if the writer crashed before clearing it.
func (s *Session) TypingIndicator(viewerId string, now time.Time, ttl time.Duration) string {
	if s.TypingUserId == "" || s.TypingUserId == viewerId {
		return ""
	}
	if s.TypingAt > 0 && now.UnixMilli()-s.TypingAt > ttl.Milliseconds() {
		return ""
	}
	return fmt.Sprintf("%s yazıyor...", s.TypingUserName)
}

// Message is one immutable unit of conversation content. SentAt is assigned
// by this service at append time and is the sole ordering key; ClientSentAt
// carries the device's own clock for display only.
type Message struct {
	Id           string
	SessionId    string
	SenderId     string
	SenderName   string
	Text         string
	SentAt       int64 // unix ms, server-assigned ordering key
	ClientSentAt int64 // unix ms, display only
}
