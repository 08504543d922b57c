package entity

import "errors"

var (
	ErrEmptyMessage    = errors.New("message text must not be empty")
	ErrSessionNotFound = errors.New("chat session not found")
	ErrNotParticipant  = errors.New("user is not a participant of this session")
)
