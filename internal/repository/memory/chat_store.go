package memory

import (
	"context"
	"sort"
	"sync"

	"campus-market-be/internal/entity"
	"campus-market-be/internal/mapper"
	"campus-market-be/internal/model"
	"campus-market-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	topicSessions      = "chat.sessions"
	topicSessionPrefix = "chat.session."
	topicMessagePrefix = "chat.messages."
)

// ChatStore is a map-backed document store with live subscriptions, the
// in-process twin of the Mongo repositories. It stores raw documents (not
// entities) so the tiered shape normalization is exercised here too, and
// tests can seed legacy-shaped sessions. Change fan-out rides a watermill
// gochannel bus: mutations publish a tick, watchers re-read and deliver a
// full snapshot, mirroring the change-stream semantics exactly.
type ChatStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.ChatDoc
	messages map[string][]*model.MessageDoc
	profiles map[string]*model.UserDoc

	pubSub *gochannel.GoChannel
	mapper *mapper.ChatMapper
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		sessions: make(map[string]*model.ChatDoc),
		messages: make(map[string][]*model.MessageDoc),
		profiles: make(map[string]*model.UserDoc),
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 16},
			watermill.NopLogger{},
		),
		mapper: mapper.NewChatMapper(),
	}
}

var (
	_ contract.ChatSessionRepository = (*ChatStore)(nil)
	_ contract.ChatMessageRepository = (*ChatStore)(nil)
	_ contract.UserProfileRepository = (*profileStore)(nil)
)

func (s *ChatStore) notify(topics ...string) {
	for _, topic := range topics {
		// Publish errors only occur on a closed bus; nothing to do then.
		_ = s.pubSub.Publish(topic, message.NewMessage(watermill.NewUUID(), nil))
	}
}

// Sessions

func (s *ChatStore) Ensure(_ context.Context, session *entity.Session) error {
	s.mu.Lock()
	if _, exists := s.sessions[session.Id]; exists {
		s.mu.Unlock()
		return nil
	}
	s.sessions[session.Id] = s.mapper.SessionToDoc(session)
	s.mu.Unlock()

	s.notify(topicSessions, topicSessionPrefix+session.Id)
	return nil
}

func (s *ChatStore) Find(_ context.Context, id string) (*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.mapper.SessionToEntity(doc), nil
}

func (s *ChatStore) FindAllByParticipant(_ context.Context, userId string) ([]*entity.Session, error) {
	s.mu.RLock()
	var result []*entity.Session
	for _, doc := range s.sessions {
		for _, pid := range doc.Participants {
			if pid == userId {
				result = append(result, s.mapper.SessionToEntity(doc))
				break
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastMessageAt > result[j].LastMessageAt
	})
	return result, nil
}

func (s *ChatStore) MergeSummary(_ context.Context, id, lastMessage string, at int64) error {
	s.mu.Lock()
	doc, ok := s.sessions[id]
	if ok {
		doc.LastMessage = lastMessage
		doc.UpdatedAt = at
		doc.TypingUser = ""
		doc.TypingUsername = ""
		doc.TypingAt = 0
	}
	s.mu.Unlock()

	if ok {
		s.notify(topicSessions, topicSessionPrefix+id)
	}
	return nil
}

func (s *ChatStore) MergeTyping(_ context.Context, id, typingUserId, typingUserName string, at int64) error {
	s.mu.Lock()
	doc, ok := s.sessions[id]
	if ok {
		doc.TypingUser = typingUserId
		doc.TypingUsername = typingUserName
		doc.TypingAt = at
	}
	s.mu.Unlock()

	if ok {
		s.notify(topicSessions, topicSessionPrefix+id)
	}
	return nil
}

func (s *ChatStore) MergeParticipantsInfo(_ context.Context, id string, participants []entity.Participant) error {
	s.mu.Lock()
	doc, ok := s.sessions[id]
	if ok {
		doc.ParticipantsInfo = s.mapper.ParticipantsToInfos(participants)
	}
	s.mu.Unlock()

	if ok {
		s.notify(topicSessions, topicSessionPrefix+id)
	}
	return nil
}

func (s *ChatStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.notify(topicSessions, topicSessionPrefix+id)
	return nil
}

func (s *ChatStore) Watch(ctx context.Context, id string) (<-chan *entity.Session, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := s.pubSub.Subscribe(ctx, topicSessionPrefix+id)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	ch := make(chan *entity.Session, 1)
	go func() {
		defer close(ch)

		snapshot, _ := s.Find(ctx, id)
		select {
		case ch <- snapshot:
		case <-ctx.Done():
			return
		}

		for msg := range msgs {
			msg.Ack()
			snapshot, _ := s.Find(ctx, id)
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, contract.CancelFunc(cancel), nil
}

func (s *ChatStore) WatchByParticipant(ctx context.Context, userId string) (<-chan []*entity.Session, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := s.pubSub.Subscribe(ctx, topicSessions)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	ch := make(chan []*entity.Session, 1)
	go func() {
		defer close(ch)

		snapshot, _ := s.FindAllByParticipant(ctx, userId)
		select {
		case ch <- snapshot:
		case <-ctx.Done():
			return
		}

		for msg := range msgs {
			msg.Ack()
			snapshot, _ := s.FindAllByParticipant(ctx, userId)
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, contract.CancelFunc(cancel), nil
}

// Messages

func (s *ChatStore) Append(_ context.Context, msg *entity.Message) error {
	s.mu.Lock()
	s.messages[msg.SessionId] = append(s.messages[msg.SessionId], s.mapper.MessageToDoc(msg))
	s.mu.Unlock()

	s.notify(topicMessagePrefix + msg.SessionId)
	return nil
}

func (s *ChatStore) ListOrdered(_ context.Context, sessionId string) ([]*entity.Message, error) {
	s.mu.RLock()
	docs := make([]*model.MessageDoc, len(s.messages[sessionId]))
	copy(docs, s.messages[sessionId])
	s.mu.RUnlock()

	// Stable sort: equal sent_at keeps insertion order.
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].SentAt < docs[j].SentAt
	})
	return s.mapper.MessagesToEntities(docs), nil
}

func (s *ChatStore) DeleteAllBySession(_ context.Context, sessionId string) error {
	s.mu.Lock()
	delete(s.messages, sessionId)
	s.mu.Unlock()

	s.notify(topicMessagePrefix + sessionId)
	return nil
}

func (s *ChatStore) WatchOrdered(ctx context.Context, sessionId string) (<-chan []*entity.Message, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := s.pubSub.Subscribe(ctx, topicMessagePrefix+sessionId)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	ch := make(chan []*entity.Message, 1)
	go func() {
		defer close(ch)

		snapshot, _ := s.ListOrdered(ctx, sessionId)
		select {
		case ch <- snapshot:
		case <-ctx.Done():
			return
		}

		for msg := range msgs {
			msg.Ack()
			snapshot, _ := s.ListOrdered(ctx, sessionId)
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, contract.CancelFunc(cancel), nil
}

// Profiles
//
// The profile collection belongs to an external collaborator, so it gets
// its own repository view over the shared store instead of piling another
// Find onto ChatStore.

type profileStore struct {
	s *ChatStore
}

func (s *ChatStore) Profiles() contract.UserProfileRepository {
	return &profileStore{s: s}
}

func (p *profileStore) Find(_ context.Context, id string) (*entity.Profile, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	doc, ok := p.s.profiles[id]
	if !ok {
		return nil, nil
	}
	return p.s.mapper.ProfileToEntity(doc), nil
}

// Seed helpers for tests and local development.

func (s *ChatStore) SeedProfile(doc *model.UserDoc) {
	s.mu.Lock()
	s.profiles[doc.Id] = doc
	s.mu.Unlock()
}

func (s *ChatStore) SeedSession(doc *model.ChatDoc) {
	s.mu.Lock()
	s.sessions[doc.Id] = doc
	s.mu.Unlock()
	s.notify(topicSessions, topicSessionPrefix+doc.Id)
}

func (s *ChatStore) Close() error {
	return s.pubSub.Close()
}
