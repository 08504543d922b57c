package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"campus-market-be/internal/config"
	"campus-market-be/internal/dto"
	"campus-market-be/internal/entity"
	"campus-market-be/internal/pkg/logger"
	"campus-market-be/internal/repository/contract"
	"campus-market-be/pkg/chatid"
	"campus-market-be/pkg/events"
	"campus-market-be/pkg/feed"

	"github.com/google/uuid"
)

// IEventPublisher decouples the service from the concrete NATS publisher;
// nil-able so the service degrades to no events when the bus is down.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// RealtimeNotifier pushes an out-of-band frame to a user's live websocket
// connections (all devices, all instances).
type RealtimeNotifier interface {
	Send(userId string, data []byte)
}

type IChatService interface {
	StartChat(ctx context.Context, current entity.Participant, req *dto.StartChatRequest) (*dto.StartChatResponse, error)
	SendMessage(ctx context.Context, sessionId string, sender entity.Participant, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	SetTyping(ctx context.Context, sessionId string, user entity.Participant, typing bool) error
	History(ctx context.Context, sessionId, viewerId string) ([]*dto.MessageResponse, error)
	Feed(ctx context.Context, sessionId, viewerId string) ([]feed.Item, error)
	DeleteChat(ctx context.Context, sessionId, requesterId string) error
	WatchMessages(ctx context.Context, sessionId, viewerId string) (<-chan []*dto.MessageResponse, contract.CancelFunc, error)
	WatchSession(ctx context.Context, sessionId, viewerId string) (<-chan *dto.SessionState, contract.CancelFunc, error)
}

type chatService struct {
	sessions  contract.ChatSessionRepository
	messages  contract.ChatMessageRepository
	profiles  IProfileService
	publisher IEventPublisher
	notifier  RealtimeNotifier
	logger    logger.ILogger
	cfg       config.ChatConfig
}

func NewChatService(
	sessions contract.ChatSessionRepository,
	messages contract.ChatMessageRepository,
	profiles IProfileService,
	publisher IEventPublisher,
	notifier RealtimeNotifier,
	log logger.ILogger,
	cfg config.ChatConfig,
) IChatService {
	return &chatService{
		sessions:  sessions,
		messages:  messages,
		profiles:  profiles,
		publisher: publisher,
		notifier:  notifier,
		logger:    log,
		cfg:       cfg,
	}
}

// writeCtx bounds a store write. Indefinite hangs on send/typing are a
// usability defect even though not a data-integrity one.
func (s *chatService) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.WriteTimeout)
}

// StartChat derives the session id and idempotently creates the session
// document with denormalized participant snapshots. Calling it again for
// the same pair returns the same id and leaves the existing document alone.
func (s *chatService) StartChat(ctx context.Context, current entity.Participant, req *dto.StartChatRequest) (*dto.StartChatResponse, error) {
	sessionId, err := chatid.Resolve(current.Id, req.ReceiverId)
	if err != nil {
		return nil, err
	}

	receiver := entity.Participant{
		Id:    req.ReceiverId,
		Name:  req.ReceiverName,
		Image: req.ReceiverImage,
	}
	s.fillImages(ctx, &current, &receiver)

	now := time.Now().UnixMilli()
	session := &entity.Session{
		Id:           sessionId,
		Participants: []entity.Participant{current, receiver},
		CreatedAt:    now,
	}

	wctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if err := s.sessions.Ensure(wctx, session); err != nil {
		return nil, err
	}

	return &dto.StartChatResponse{SessionId: sessionId}, nil
}

// SendMessage appends one message and then updates the session summary,
// clearing the typing signal in the same merge. The two writes are not a
// transaction: a crash in between leaves the message visible with a stale
// summary, which self-heals on the next send. The summary merge is retried
// once before giving up.
func (s *chatService) SendMessage(ctx context.Context, sessionId string, sender entity.Participant, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, entity.ErrEmptyMessage
	}

	session, err := s.sessions.Find(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	if session == nil {
		// Lazy create on first send. The screen was opened from an ad
		// before any session existed; the request must carry the receiver.
		if req.ReceiverId == "" {
			return nil, entity.ErrSessionNotFound
		}
		res, err := s.StartChat(ctx, sender, &dto.StartChatRequest{
			ReceiverId:   req.ReceiverId,
			ReceiverName: req.ReceiverName,
		})
		if err != nil {
			return nil, err
		}
		if res.SessionId != sessionId {
			return nil, entity.ErrNotParticipant
		}
		if session, err = s.sessions.Find(ctx, sessionId); err != nil || session == nil {
			return nil, entity.ErrSessionNotFound
		}
	}

	if !session.HasParticipant(sender.Id) {
		return nil, entity.ErrNotParticipant
	}

	// Ordering key is assigned here, not on the device: client clocks skew.
	sentAt := time.Now().UnixMilli()
	msg := &entity.Message{
		Id:           uuid.NewString(),
		SessionId:    sessionId,
		SenderId:     sender.Id,
		SenderName:   sender.Name,
		Text:         text,
		SentAt:       sentAt,
		ClientSentAt: req.ClientSentAt,
	}

	wctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if err := s.messages.Append(wctx, msg); err != nil {
		return nil, err
	}

	if err := s.mergeSummary(ctx, sessionId, text, sentAt); err != nil {
		// Message is persisted; the stale summary heals on the next send.
		s.logger.Error("ChatService", "Summary merge failed after retry", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	s.afterSend(ctx, session, msg)

	return &dto.SendMessageResponse{
		MessageId: msg.Id,
		SessionId: sessionId,
		SentAt:    sentAt,
	}, nil
}

func (s *chatService) mergeSummary(ctx context.Context, sessionId, text string, at int64) error {
	wctx, cancel := s.writeCtx(ctx)
	err := s.sessions.MergeSummary(wctx, sessionId, text, at)
	cancel()
	if err == nil {
		return nil
	}

	s.logger.Warn("ChatService", "Summary merge failed, retrying once", map[string]interface{}{
		"session_id": sessionId,
		"error":      err.Error(),
	})

	wctx, cancel = s.writeCtx(ctx)
	defer cancel()
	return s.sessions.MergeSummary(wctx, sessionId, text, at)
}

// afterSend emits the best-effort side channels: the NATS event for the
// push collaborator and a direct frame to the receiver's live connections.
// Neither outcome affects the send result.
func (s *chatService) afterSend(ctx context.Context, session *entity.Session, msg *entity.Message) {
	receiver, ok := session.Other(msg.SenderId)
	if !ok {
		return
	}

	if s.publisher != nil {
		evt := events.MessageSent(msg.SessionId, msg.Id, msg.SenderId, receiver.Id, msg.Text)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("ChatService", "Event publish failed", map[string]interface{}{
				"session_id": msg.SessionId,
				"error":      err.Error(),
			})
		}
	}

	if s.notifier != nil {
		frame, err := json.Marshal(map[string]interface{}{
			"type": "message.sent",
			"data": dto.MessageResponse{
				Id:           msg.Id,
				SenderId:     msg.SenderId,
				SenderName:   msg.SenderName,
				Text:         msg.Text,
				SentAt:       msg.SentAt,
				ClientSentAt: msg.ClientSentAt,
			},
		})
		if err == nil {
			s.notifier.Send(receiver.Id, frame)
		}
	}
}

// SetTyping merges the typing presence fields, last-writer-wins. A missing
// session is a silent no-op: you cannot be "typing" into a conversation
// that was never created. Store failures are logged, never surfaced; the
// presence signal is not worth an error dialog.
func (s *chatService) SetTyping(ctx context.Context, sessionId string, user entity.Participant, typing bool) error {
	session, err := s.sessions.Find(ctx, sessionId)
	if err != nil || session == nil {
		return err
	}
	if !session.HasParticipant(user.Id) {
		return entity.ErrNotParticipant
	}

	wctx, cancel := s.writeCtx(ctx)
	defer cancel()

	if typing {
		err = s.sessions.MergeTyping(wctx, sessionId, user.Id, user.Name, time.Now().UnixMilli())
	} else {
		err = s.sessions.MergeTyping(wctx, sessionId, "", "", 0)
	}
	if err != nil {
		s.logger.Warn("ChatService", "Typing merge failed", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	return nil
}

func (s *chatService) History(ctx context.Context, sessionId, viewerId string) ([]*dto.MessageResponse, error) {
	if err := s.authorize(ctx, sessionId, viewerId); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListOrdered(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.MessageResponse, len(messages))
	for i, m := range messages {
		result[i] = &dto.MessageResponse{
			Id:           m.Id,
			SenderId:     m.SenderId,
			SenderName:   m.SenderName,
			Text:         m.Text,
			SentAt:       m.SentAt,
			ClientSentAt: m.ClientSentAt,
		}
	}
	return result, nil
}

func (s *chatService) Feed(ctx context.Context, sessionId, viewerId string) ([]feed.Item, error) {
	if err := s.authorize(ctx, sessionId, viewerId); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListOrdered(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return feed.Build(messages, viewerId, time.Now()), nil
}

// DeleteChat removes the conversation and its whole message log. Messages
// go first so a crash in between leaves an empty-but-listed session rather
// than orphaned messages.
func (s *chatService) DeleteChat(ctx context.Context, sessionId, requesterId string) error {
	if err := s.authorize(ctx, sessionId, requesterId); err != nil {
		return err
	}

	wctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if err := s.messages.DeleteAllBySession(wctx, sessionId); err != nil {
		return err
	}

	wctx2, cancel2 := s.writeCtx(ctx)
	defer cancel2()
	if err := s.sessions.Delete(wctx2, sessionId); err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.SessionDeleted(sessionId, requesterId)); err != nil {
			s.logger.Warn("ChatService", "Event publish failed", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// WatchMessages streams the full ordered message list, first on subscribe
// and then after every change. The screen may be opened before the session
// exists (lazy create flow), so membership falls back to the id itself when
// there is no document to check against.
func (s *chatService) WatchMessages(ctx context.Context, sessionId, viewerId string) (<-chan []*dto.MessageResponse, contract.CancelFunc, error) {
	if err := s.authorizeWatch(ctx, sessionId, viewerId); err != nil {
		return nil, nil, err
	}

	raw, cancel, err := s.messages.WatchOrdered(ctx, sessionId)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []*dto.MessageResponse, 1)
	go func() {
		defer close(out)
		for messages := range raw {
			snapshot := make([]*dto.MessageResponse, len(messages))
			for i, m := range messages {
				snapshot[i] = &dto.MessageResponse{
					Id:           m.Id,
					SenderId:     m.SenderId,
					SenderName:   m.SenderName,
					Text:         m.Text,
					SentAt:       m.SentAt,
					ClientSentAt: m.ClientSentAt,
				}
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}

// WatchSession streams the viewer-rendered session state: typing indicator
// and last-message summary. A deleted session is delivered once with
// Deleted set instead of silently closing.
func (s *chatService) WatchSession(ctx context.Context, sessionId, viewerId string) (<-chan *dto.SessionState, contract.CancelFunc, error) {
	if err := s.authorizeWatch(ctx, sessionId, viewerId); err != nil {
		return nil, nil, err
	}

	raw, cancel, err := s.sessions.Watch(ctx, sessionId)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan *dto.SessionState, 1)
	go func() {
		defer close(out)
		var existed bool
		for session := range raw {
			state := &dto.SessionState{SessionId: sessionId}
			if session == nil {
				if !existed {
					// Not created yet, nothing to render.
					continue
				}
				state.Deleted = true
			} else {
				existed = true
				state.LastMessage = session.LastMessageText
				state.LastMessageAt = session.LastMessageAt
				state.TypingIndicator = session.TypingIndicator(viewerId, time.Now(), s.cfg.TypingTTL)
			}
			select {
			case out <- state:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}

// authorizeWatch differs from authorize in tolerating a session that does
// not exist yet: the id itself proves intended membership then.
func (s *chatService) authorizeWatch(ctx context.Context, sessionId, viewerId string) error {
	session, err := s.sessions.Find(ctx, sessionId)
	if err != nil {
		return err
	}
	if session == nil {
		if !chatid.Contains(sessionId, viewerId) {
			return entity.ErrNotParticipant
		}
		return nil
	}
	if !session.HasParticipant(viewerId) {
		return entity.ErrNotParticipant
	}
	return nil
}

func (s *chatService) authorize(ctx context.Context, sessionId, userId string) error {
	session, err := s.sessions.Find(ctx, sessionId)
	if err != nil {
		return err
	}
	if session == nil {
		return entity.ErrSessionNotFound
	}
	if !session.HasParticipant(userId) {
		return entity.ErrNotParticipant
	}
	return nil
}

// fillImages resolves missing avatar URIs from the live profiles before
// denormalizing them into the session document. Best-effort: a profile
// read failure just leaves the image empty.
func (s *chatService) fillImages(ctx context.Context, participants ...*entity.Participant) {
	for _, p := range participants {
		if p.Image != "" {
			continue
		}
		profile, err := s.profiles.Get(ctx, p.Id)
		if err != nil || profile == nil {
			continue
		}
		p.Image = profile.Image
		if p.Name == "" {
			p.Name = profile.Name
		}
	}
}
