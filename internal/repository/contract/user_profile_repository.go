package contract

import (
	"context"

	"campus-market-be/internal/entity"
)

// UserProfileRepository reads the external user-profile collaborator's
// collection. The chat subsystem never writes it.
type UserProfileRepository interface {
	// Find returns (nil, nil) when no profile exists for the id.
	Find(ctx context.Context, id string) (*entity.Profile, error)
}
