package service

import (
	"context"
	"testing"
	"time"

	"campus-market-be/internal/dto"
	"campus-market-be/internal/entity"
	"campus-market-be/internal/model"
	"campus-market-be/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversationFixture(t *testing.T) (*memory.ChatStore, IConversationService, IChatService) {
	t.Helper()
	store := memory.NewChatStore()
	t.Cleanup(func() { _ = store.Close() })

	profiles := NewProfileService(store.Profiles())
	cfg := testChatConfig()
	conv := NewConversationService(store, profiles, nopLogger{}, cfg)
	chat := NewChatService(store, store, profiles, nil, nil, nopLogger{}, cfg)
	return store, conv, chat
}

func TestListOrdersByActivity(t *testing.T) {
	_, conv, chat := newConversationFixture(t)
	ctx := context.Background()

	_, err := chat.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{
		Text: "eski", ReceiverId: "u2", ReceiverName: "Mehmet",
	})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond) // distinct unix-ms timestamps

	_, err = chat.SendMessage(ctx, "u1_u3", u1(), &dto.SendMessageRequest{
		Text: "yeni", ReceiverId: "u3", ReceiverName: "Zeynep",
	})
	require.NoError(t, err)

	summaries, err := conv.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "u3", summaries[0].OtherUserId, "most recent activity first")
	assert.Equal(t, "yeni", summaries[0].LastMessage)
	assert.Equal(t, "u2", summaries[1].OtherUserId)

	// u3 only sees their own single conversation.
	theirs, err := conv.List(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "u1", theirs[0].OtherUserId)
	assert.Equal(t, "Ayşe", theirs[0].OtherUserName)
}

func TestListResolvesLegacyNameMap(t *testing.T) {
	store, conv, _ := newConversationFixture(t)

	store.SeedSession(&model.ChatDoc{
		Id:               "u1_u9",
		Participants:     []string{"u1", "u9"},
		ParticipantNames: map[string]string{"u1": "Ayşe", "u9": "Deniz"},
		LastMessage:      "legacy doc",
		UpdatedAt:        time.Now().UnixMilli(),
	})

	summaries, err := conv.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "u9", summaries[0].OtherUserId)
	assert.Equal(t, "Deniz", summaries[0].OtherUserName)
}

func TestListBareIdsFallsBackToSentinel(t *testing.T) {
	store, conv, _ := newConversationFixture(t)

	store.SeedSession(&model.ChatDoc{
		Id:           "u1_u9",
		Participants: []string{"u1", "u9"},
		UpdatedAt:    time.Now().UnixMilli(),
	})

	summaries, err := conv.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, entity.UnknownParticipantName, summaries[0].OtherUserName)
}

func TestListTypingIndicatorVisibility(t *testing.T) {
	_, conv, chat := newConversationFixture(t)
	ctx := context.Background()

	_, err := chat.StartChat(ctx, u1(), &dto.StartChatRequest{ReceiverId: "u2", ReceiverName: "Mehmet"})
	require.NoError(t, err)
	require.NoError(t, chat.SetTyping(ctx, "u1_u2", u2(), true))

	// The other side sees the indicator.
	summaries, err := conv.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Mehmet yazıyor...", summaries[0].TypingIndicator)

	// The typist never sees their own signal echoed back.
	own, err := conv.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Empty(t, own[0].TypingIndicator)
}

func TestListTypingIndicatorExpires(t *testing.T) {
	store, conv, _ := newConversationFixture(t)

	// Signal stamped well past the TTL, as if the writer crashed before
	// clearing it.
	store.SeedSession(&model.ChatDoc{
		Id:               "u1_u2",
		Participants:     []string{"u1", "u2"},
		ParticipantNames: map[string]string{"u1": "Ayşe", "u2": "Mehmet"},
		TypingUser:       "u2",
		TypingUsername:   "Mehmet",
		TypingAt:         time.Now().Add(-time.Minute).UnixMilli(),
		UpdatedAt:        time.Now().UnixMilli(),
	})

	summaries, err := conv.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Empty(t, summaries[0].TypingIndicator, "stale signal must read as cleared")
}

func TestListHealsStaleAvatar(t *testing.T) {
	store, conv, _ := newConversationFixture(t)
	ctx := context.Background()

	store.SeedProfile(&model.UserDoc{Id: "u2", Name: "Mehmet", ProfileImage: "https://img/new.png"})
	store.SeedSession(&model.ChatDoc{
		Id:           "u1_u2",
		Participants: []string{"u1", "u2"},
		ParticipantsInfo: []model.ParticipantInfo{
			{Id: "u1", Name: "Ayşe"},
			{Id: "u2", Name: "Mehmet", Image: "https://img/old.png"},
		},
		UpdatedAt: time.Now().UnixMilli(),
	})

	summaries, err := conv.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "https://img/new.png", summaries[0].OtherUserImage)

	// The fix converges: the corrected snapshot was written back.
	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	other, ok := session.Other("u1")
	require.True(t, ok)
	assert.Equal(t, "https://img/new.png", other.Image)
}

func TestListHealsOwnStaleAvatar(t *testing.T) {
	store, conv, _ := newConversationFixture(t)
	ctx := context.Background()

	// The viewer changed their avatar after the session snapshot was taken.
	// Their counterpart renders them from that snapshot, so the viewer's
	// pass has to repair its own entry.
	store.SeedProfile(&model.UserDoc{Id: "u1", Name: "Ayşe", ProfileImage: "https://img/ayse-new.png"})
	store.SeedSession(&model.ChatDoc{
		Id:           "u1_u2",
		Participants: []string{"u1", "u2"},
		ParticipantsInfo: []model.ParticipantInfo{
			{Id: "u1", Name: "Ayşe", Image: "https://img/ayse-old.png"},
			{Id: "u2", Name: "Mehmet", Image: "https://img/mehmet.png"},
		},
		UpdatedAt: time.Now().UnixMilli(),
	})

	_, err := conv.List(ctx, "u1")
	require.NoError(t, err)

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	byId := map[string]entity.Participant{}
	for _, p := range session.Participants {
		byId[p.Id] = p
	}
	assert.Equal(t, "https://img/ayse-new.png", byId["u1"].Image, "viewer's own entry repaired")
	assert.Equal(t, "https://img/mehmet.png", byId["u2"].Image, "counterpart untouched without a live image")
}

func TestListKeepsCachedAvatarWhenProfileHasNone(t *testing.T) {
	store, conv, _ := newConversationFixture(t)
	ctx := context.Background()

	// A removed avatar is not a heal; the cached image stays until a new
	// one exists.
	store.SeedProfile(&model.UserDoc{Id: "u1", Name: "Ayşe"})
	store.SeedSession(&model.ChatDoc{
		Id:           "u1_u2",
		Participants: []string{"u1", "u2"},
		ParticipantsInfo: []model.ParticipantInfo{
			{Id: "u1", Name: "Ayşe", Image: "https://img/ayse-old.png"},
			{Id: "u2", Name: "Mehmet"},
		},
		UpdatedAt: time.Now().UnixMilli(),
	})

	_, err := conv.List(ctx, "u1")
	require.NoError(t, err)

	session, err := store.Find(ctx, "u1_u2")
	require.NoError(t, err)
	for _, p := range session.Participants {
		if p.Id == "u1" {
			assert.Equal(t, "https://img/ayse-old.png", p.Image)
		}
	}
}

func TestWatchDeliversSnapshotsOnChange(t *testing.T) {
	_, conv, chat := newConversationFixture(t)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	ch, cancel, err := conv.Watch(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	recv := func() []*dto.ConversationSummary {
		select {
		case snapshot, ok := <-ch:
			require.True(t, ok, "watch channel closed early")
			return snapshot
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	assert.Empty(t, recv(), "initial snapshot of an empty store")

	_, err = chat.SendMessage(ctx, "u1_u2", u1(), &dto.SendMessageRequest{
		Text: "ilk mesaj", ReceiverId: "u2", ReceiverName: "Mehmet",
	})
	require.NoError(t, err)

	// The send touches the session twice (create, summary merge); drain
	// until the summary shows up.
	deadline := time.After(2 * time.Second)
	for {
		var snapshot []*dto.ConversationSummary
		select {
		case snapshot = <-ch:
		case <-deadline:
			t.Fatal("summary never arrived")
		}
		if len(snapshot) == 1 && snapshot[0].LastMessage == "ilk mesaj" {
			assert.Equal(t, "u2", snapshot[0].OtherUserId)
			return
		}
	}
}

func TestWatchCancelClosesChannel(t *testing.T) {
	_, conv, _ := newConversationFixture(t)

	ch, cancel, err := conv.Watch(context.Background(), "u1")
	require.NoError(t, err)

	<-ch // initial snapshot
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A snapshot may have raced the cancel; the close must follow.
			_, ok = <-ch
			assert.False(t, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
