package service

import (
	"context"
	"time"

	"campus-market-be/internal/config"
	"campus-market-be/internal/dto"
	"campus-market-be/internal/entity"
	"campus-market-be/internal/pkg/logger"
	"campus-market-be/internal/repository/contract"
)

type IConversationService interface {
	List(ctx context.Context, viewerId string) ([]*dto.ConversationSummary, error)
	Watch(ctx context.Context, viewerId string) (<-chan []*dto.ConversationSummary, contract.CancelFunc, error)
}

type conversationService struct {
	sessions contract.ChatSessionRepository
	profiles IProfileService
	logger   logger.ILogger
	cfg      config.ChatConfig
}

func NewConversationService(
	sessions contract.ChatSessionRepository,
	profiles IProfileService,
	log logger.ILogger,
	cfg config.ChatConfig,
) IConversationService {
	return &conversationService{
		sessions: sessions,
		profiles: profiles,
		logger:   log,
		cfg:      cfg,
	}
}

// List maps the viewer's sessions to per-conversation summaries, newest
// activity first. Sessions whose counterpart cannot be resolved at all are
// dropped rather than shown as broken rows.
func (s *conversationService) List(ctx context.Context, viewerId string) ([]*dto.ConversationSummary, error) {
	sessions, err := s.sessions.FindAllByParticipant(ctx, viewerId)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, sessions, viewerId), nil
}

// Watch delivers the full summary list on subscribe and again after every
// change touching one of the viewer's sessions. Cancel the returned func
// (or the context) to stop; the channel closes afterwards.
func (s *conversationService) Watch(ctx context.Context, viewerId string) (<-chan []*dto.ConversationSummary, contract.CancelFunc, error) {
	raw, cancel, err := s.sessions.WatchByParticipant(ctx, viewerId)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []*dto.ConversationSummary, 1)
	go func() {
		defer close(out)
		for sessions := range raw {
			summaries := s.summarize(ctx, sessions, viewerId)
			select {
			case out <- summaries:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}

func (s *conversationService) summarize(ctx context.Context, sessions []*entity.Session, viewerId string) []*dto.ConversationSummary {
	now := time.Now()
	viewerImage := s.liveImage(ctx, viewerId)
	summaries := make([]*dto.ConversationSummary, 0, len(sessions))
	for _, session := range sessions {
		// Legacy documents can resolve to a counterpart with no id at
		// all; there is nothing to render or navigate to for those.
		other, ok := session.Other(viewerId)
		if !ok {
			continue
		}

		other = s.healAvatars(ctx, session, viewerId, viewerImage, other)

		summaries = append(summaries, &dto.ConversationSummary{
			SessionId:       session.Id,
			OtherUserId:     other.Id,
			OtherUserName:   other.Name,
			OtherUserImage:  other.Image,
			LastMessage:     session.LastMessageText,
			LastMessageAt:   session.LastMessageAt,
			TypingIndicator: session.TypingIndicator(viewerId, now, s.cfg.TypingTTL),
		})
	}
	return summaries
}

// liveImage resolves the user's current avatar. Empty when the profile is
// missing or carries no image; an empty live image never heals anything, a
// removed avatar stays cached.
func (s *conversationService) liveImage(ctx context.Context, userId string) string {
	profile, err := s.profiles.Get(ctx, userId)
	if err != nil || profile == nil {
		return ""
	}
	return profile.Image
}

// healAvatars refreshes stale denormalized avatars from live profiles and
// writes the corrected snapshot back, so the fix converges instead of being
// recomputed on every list. The viewer's own entry is the one that matters
// most: the counterpart renders the viewer from this cached snapshot, and
// only the viewer's pass can notice it went stale. Placeholder rows are
// left untouched; a failed write just means the next pass tries again.
func (s *conversationService) healAvatars(ctx context.Context, session *entity.Session, viewerId, viewerImage string, other entity.Participant) entity.Participant {
	if other.Id == "" || other.Name == entity.UnknownParticipantName {
		return other
	}

	otherImage := s.liveImage(ctx, other.Id)

	changed := false
	infos := make([]entity.Participant, len(session.Participants))
	copy(infos, session.Participants)
	for i := range infos {
		switch infos[i].Id {
		case viewerId:
			if viewerImage != "" && infos[i].Image != viewerImage {
				infos[i].Image = viewerImage
				changed = true
			}
		case other.Id:
			if otherImage != "" && infos[i].Image != otherImage {
				infos[i].Image = otherImage
				other.Image = otherImage
				changed = true
			}
		}
	}
	if !changed {
		return other
	}

	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.sessions.MergeParticipantsInfo(wctx, session.Id, infos); err != nil {
		s.logger.Warn("ConversationService", "Avatar heal write failed", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}
	return other
}
