package contract

import (
	"context"

	"campus-market-be/internal/entity"
)

type ChatMessageRepository interface {
	// Append writes one immutable message. No deduplication: sending the
	// same text twice produces two distinct messages.
	Append(ctx context.Context, msg *entity.Message) error

	// ListOrdered returns the session's whole log sorted ascending by
	// sent_at. Ties keep insertion order.
	ListOrdered(ctx context.Context, sessionId string) ([]*entity.Message, error)

	// DeleteAllBySession removes the whole log. Only invoked as part of
	// session deletion.
	DeleteAllBySession(ctx context.Context, sessionId string) error

	// WatchOrdered streams the ENTIRE ordered message set: once on
	// subscribe, then again on every change. Consumers must treat each
	// delivery as a full-state replacement, not a diff.
	WatchOrdered(ctx context.Context, sessionId string) (<-chan []*entity.Message, CancelFunc, error)
}
