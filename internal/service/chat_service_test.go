package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"campus-market-be/internal/config"
	"campus-market-be/internal/dto"
	"campus-market-be/internal/entity"
	"campus-market-be/internal/model"
	"campus-market-be/internal/repository/memory"
	"campus-market-be/pkg/chatid"
	"campus-market-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

type captureNotifier struct {
	sentTo []string
}

func (n *captureNotifier) Send(userId string, _ []byte) {
	n.sentTo = append(n.sentTo, userId)
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		WriteTimeout: time.Second,
		TypingTTL:    10 * time.Second,
	}
}

func newChatFixture(t *testing.T) (*memory.ChatStore, IChatService, *captureBus, *captureNotifier) {
	t.Helper()
	store := memory.NewChatStore()
	t.Cleanup(func() { _ = store.Close() })

	bus := &captureBus{}
	notifier := &captureNotifier{}
	profiles := NewProfileService(store.Profiles())
	svc := NewChatService(store, store, profiles, bus, notifier, nopLogger{}, testChatConfig())
	return store, svc, bus, notifier
}

func u1() entity.Participant { return entity.Participant{Id: "u1", Name: "Ayşe"} }
func u2() entity.Participant { return entity.Participant{Id: "u2", Name: "Mehmet"} }

func TestStartChatDerivesSortedSessionId(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)

	// u2 opens the chat, but the id still sorts u1 first.
	res, err := svc.StartChat(context.Background(), u2(), &dto.StartChatRequest{
		ReceiverId:   "u1",
		ReceiverName: "Ayşe",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", res.SessionId)

	session, err := store.Find(context.Background(), "u1_u2")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.HasParticipant("u1"))
	assert.True(t, session.HasParticipant("u2"))
}

func TestStartChatIsIdempotent(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	first, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)

	// The other side opens the same pair; nothing about the existing
	// document may change.
	res, err := svc.StartChat(ctx, u2(), &dto.StartChatRequest{ReceiverId: "u1", ReceiverName: "Başka İsim"})
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", res.SessionId)

	second, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.Participants, second.Participants)
}

func TestStartChatConcurrentRacers(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	// Both sides open the pair at once, repeatedly. Exactly one create
	// wins; every call still resolves the same session.
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
			if err == nil && res.SessionId != "u1_u2" {
				err = fmt.Errorf("unexpected session id %q", res.SessionId)
			}
			errs <- err
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.StartChat(ctx, u2(), &dto.StartChatRequest{ReceiverId: "u1", ReceiverName: "Ayşe"})
			if err == nil && res.SessionId != "u1_u2" {
				err = fmt.Errorf("unexpected session id %q", res.SessionId)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	require.NotNil(t, session)
	// The winning document is one racer's write, never a blend.
	require.Len(t, session.Participants, 2)
	assert.True(t, session.HasParticipant("u1"))
	assert.True(t, session.HasParticipant("u2"))
	assert.Greater(t, session.CreatedAt, int64(0))
}

func TestStartChatWithSelfRejected(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)

	_, err := svc.StartChat(context.Background(), u1(), &dto.StartChatRequest{
		ReceiverId:   "u1",
		ReceiverName: "Ayşe",
	})
	assert.ErrorIs(t, err, chatid.ErrSelfChat)
}

func TestStartChatFillsImagesFromProfiles(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	store.SeedProfile(&model.UserDoc{Id: "u2", Name: "Mehmet", ProfileImage: "https://img/u2.png"})

	_, err := svc.StartChat(context.Background(), u1(), &dto.StartChatRequest{
		ReceiverId:   "u2",
		ReceiverName: "Mehmet",
	})
	require.NoError(t, err)

	session, err := store.Find(context.Background(), "u1_u2")
	require.NoError(t, err)
	other, ok := session.Other("u1")
	require.True(t, ok)
	assert.Equal(t, "https://img/u2.png", other.Image)
}

func TestSendMessageEmptyTextWritesNothing(t *testing.T) {
	store, svc, bus, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{
		Text:       "   \n\t ",
		ReceiverId: "u2",
	})
	assert.ErrorIs(t, err, entity.ErrEmptyMessage)

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Nil(t, session, "empty send must not lazily create a session")

	messages, err := store.ListOrdered(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Empty(t, bus.published)
}

func TestSendMessageLazyCreatesSession(t *testing.T) {
	store, svc, bus, notifier := newChatFixture(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{
		Text:         "Merhaba, ilan hala satılık mı?",
		ReceiverId:   "u2",
		ReceiverName: "Mehmet",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1_u2", res.SessionId)
	assert.NotEmpty(t, res.MessageId)
	assert.Greater(t, res.SentAt, int64(0))

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Merhaba, ilan hala satılık mı?", session.LastMessageText)
	assert.Equal(t, res.SentAt, session.LastMessageAt)

	messages, err := store.ListOrdered(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "u1", messages[0].SenderId)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "message.sent", bus.published[0].EventType())
	assert.Equal(t, "u2", bus.published[0].Payload()["receiver_id"])
	assert.Equal(t, []string{"u2"}, notifier.sentTo)
}

func TestSendMessageUnknownSessionWithoutReceiver(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), "u1_u2", u1(), &dto.SendMessageRequest{
		Text: "merhaba",
	})
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	intruder := entity.Participant{Id: "u3", Name: "Davetsiz"}
	_, err = svc.SendMessage(ctx, "u1_u2", intruder, &dto.SendMessageRequest{Text: "selam"})
	assert.ErrorIs(t, err, entity.ErrNotParticipant)
}

func TestSendMessageClearsTypingSignal(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	require.NoError(t, svc.SetTyping(ctx, "u1_u2", u1(), true))

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.TypingUserId)

	_, err = svc.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{Text: "gönderildi"})
	require.NoError(t, err)

	session, err = store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Empty(t, session.TypingUserId, "summary merge must clear typing")
	assert.Empty(t, session.TypingUserName)
}

func TestSetTypingOnMissingSessionIsNoop(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetTyping(ctx, "ghost", u1(), true))

	session, err := store.Find(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSetTypingSetAndClear(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	require.NoError(t, svc.SetTyping(ctx, "u1_u2", u2(), true))
	session, _ := store.Find(ctx, "u1_u2")
	assert.Equal(t, "u2", session.TypingUserId)
	assert.Equal(t, "Mehmet", session.TypingUserName)
	assert.Greater(t, session.TypingAt, int64(0))

	require.NoError(t, svc.SetTyping(ctx, "u1_u2", u2(), false))
	session, _ = store.Find(ctx, "u1_u2")
	assert.Empty(t, session.TypingUserId)
	assert.Zero(t, session.TypingAt)
}

func TestHistoryOrderedBySentAt(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	// Append out of timestamp order; reads must still come back ascending.
	base := time.Now().UnixMilli()
	for _, m := range []*entity.Message{
		{Id: "m3", SessionId: "u1_u2", SenderId: "u1", Text: "üçüncü", SentAt: base + 2000},
		{Id: "m1", SessionId: "u1_u2", SenderId: "u1", Text: "birinci", SentAt: base},
		{Id: "m2", SessionId: "u1_u2", SenderId: "u2", Text: "ikinci", SentAt: base + 1000},
	} {
		require.NoError(t, store.Append(ctx, m))
	}

	history, err := svc.History(ctx, "u1_u2", "u1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{history[0].Id, history[1].Id, history[2].Id})
}

func TestWatchMessagesSortsOutOfOrderAppends(t *testing.T) {
	store, svc, _, _ := newChatFixture(t)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	ch, cancel, err := svc.WatchMessages(ctx, "u1_u2", "u1")
	require.NoError(t, err)
	defer cancel()

	// Appends land in scrambled timestamp order; every delivered snapshot
	// must still read ascending by sent_at.
	base := time.Now().UnixMilli()
	for _, m := range []*entity.Message{
		{Id: "m3", SessionId: "u1_u2", SenderId: "u1", Text: "üçüncü", SentAt: base + 2000},
		{Id: "m1", SessionId: "u1_u2", SenderId: "u2", Text: "birinci", SentAt: base},
		{Id: "m2", SessionId: "u1_u2", SenderId: "u1", Text: "ikinci", SentAt: base + 1000},
	} {
		require.NoError(t, store.Append(ctx, m))
	}

	deadline := time.After(2 * time.Second)
	for {
		var snapshot []*dto.MessageResponse
		select {
		case snapshot = <-ch:
		case <-deadline:
			t.Fatal("full snapshot never arrived")
		}
		for i := 1; i < len(snapshot); i++ {
			assert.LessOrEqual(t, snapshot[i-1].SentAt, snapshot[i].SentAt)
		}
		if len(snapshot) == 3 {
			assert.Equal(t, []string{"m1", "m2", "m3"},
				[]string{snapshot[0].Id, snapshot[1].Id, snapshot[2].Id})
			return
		}
	}
}

func TestHistoryRejectsOutsider(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	_, err = svc.History(ctx, "u1_u2", "u3")
	assert.ErrorIs(t, err, entity.ErrNotParticipant)

	_, err = svc.History(ctx, "nope", "u1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestFeedGroupsByDay(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)

	for _, text := range []string{"selam", "nasılsın"} {
		_, err := svc.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{Text: text})
		require.NoError(t, err)
	}

	items, err := svc.Feed(ctx, "u1_u2", "u1")
	require.NoError(t, err)
	require.Len(t, items, 3, "one Bugün separator plus two rows")
	assert.Equal(t, "Bugün", items[0].Label)
	assert.True(t, items[1].Mine)
	assert.True(t, items[2].Mine)
}

func TestDeleteChatCascades(t *testing.T) {
	store, svc, bus, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{
		Text: "silinecek", ReceiverId: "u2", ReceiverName: "Mehmet",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChat(ctx, "u1_u2", "u1"))

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Nil(t, session)

	messages, err := store.ListOrdered(ctx, "u1_u2")
	require.NoError(t, err)
	assert.Empty(t, messages)

	var deleted bool
	for _, evt := range bus.published {
		if evt.EventType() == "session.deleted" {
			deleted = true
		}
	}
	assert.True(t, deleted, "deletion event not published")
}

func TestDeleteChatAuthorization(t *testing.T) {
	_, svc, _, _ := newChatFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteChat(ctx, "u1_u2", "u1"), entity.ErrSessionNotFound)

	_, err := svc.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteChat(ctx, "u1_u2", "u3"), entity.ErrNotParticipant)
}
