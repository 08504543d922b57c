package service

import (
	"context"
	"time"

	"campus-market-be/internal/entity"
	"campus-market-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

type IProfileService interface {
	// Get returns (nil, nil) when the user has no profile document.
	Get(ctx context.Context, id string) (*entity.Profile, error)
}

type profileService struct {
	repo  contract.UserProfileRepository
	cache *cache.Cache
}

// NewProfileService wraps the external profile collaborator with a short
// in-process cache. Profiles are read on every session create and on every
// conversation-list pass for avatar self-healing, so the point reads are
// worth deduplicating.
func NewProfileService(repo contract.UserProfileRepository) IProfileService {
	return &profileService{
		repo:  repo,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *profileService) Get(ctx context.Context, id string) (*entity.Profile, error) {
	if x, found := s.cache.Get(id); found {
		return x.(*entity.Profile), nil
	}

	profile, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		s.cache.Set(id, profile, cache.DefaultExpiration)
	}
	return profile, nil
}
