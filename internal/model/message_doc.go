package model

// MessageDoc is one message in the append-only log. Messages are immutable
// once written and only ever removed by whole-session deletion.
type MessageDoc struct {
	Id           string `bson:"_id"`
	SessionId    string `bson:"session_id"`
	SenderId     string `bson:"sender_id"`
	SenderName   string `bson:"sender_name"`
	Text         string `bson:"text"`
	SentAt       int64  `bson:"sent_at"`
	ClientSentAt int64  `bson:"client_sent_at,omitempty"`
}

func (MessageDoc) CollectionName() string {
	return "chat_messages"
}
