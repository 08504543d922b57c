package contract

import (
	"context"

	"campus-market-be/internal/entity"
)

// CancelFunc tears down a live subscription. Every screen-scoped watch MUST
// be cancelled on unmount; a leaked watch lives for the rest of the process.
type CancelFunc func()

type ChatSessionRepository interface {
	// Ensure creates the session document if and only if it does not exist
	// yet. Safe to call from both participants' first sends concurrently;
	// an existing session is never overwritten.
	Ensure(ctx context.Context, session *entity.Session) error

	// Find returns (nil, nil) when the session does not exist.
	Find(ctx context.Context, id string) (*entity.Session, error)

	// FindAllByParticipant returns every session the user is a member of,
	// ordered by last-message time descending.
	FindAllByParticipant(ctx context.Context, userId string) ([]*entity.Session, error)

	// MergeSummary updates the denormalized last-message fields and clears
	// the typing signal in the same write (send clears typing as a side
	// effect). Last-writer-wins; no field is read-modify-written.
	MergeSummary(ctx context.Context, id, lastMessage string, at int64) error

	// MergeTyping sets the typing presence fields. Empty userId clears.
	MergeTyping(ctx context.Context, id, typingUserId, typingUserName string, at int64) error

	// MergeParticipantsInfo repairs the denormalized display snapshots
	// (avatar self-healing). Best-effort cache coherence, never required
	// for correctness.
	MergeParticipantsInfo(ctx context.Context, id string, participants []entity.Participant) error

	Delete(ctx context.Context, id string) error

	// Watch streams the session document: one snapshot immediately, then
	// one per metadata mutation. A nil snapshot means the session was
	// deleted. The channel closes when cancelled.
	Watch(ctx context.Context, id string) (<-chan *entity.Session, CancelFunc, error)

	// WatchByParticipant streams the user's full session list (ordered by
	// last-message time descending) on every relevant change.
	WatchByParticipant(ctx context.Context, userId string) (<-chan []*entity.Session, CancelFunc, error)
}
