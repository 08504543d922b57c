package dto

// StartChatRequest opens (or reuses) a conversation with another user,
// typically from an ad's detail screen.
type StartChatRequest struct {
	ReceiverId    string `json:"receiver_id" validate:"required"`
	ReceiverName  string `json:"receiver_name" validate:"required"`
	ReceiverImage string `json:"receiver_image,omitempty"`
}

type StartChatResponse struct {
	SessionId string `json:"session_id"`
}

type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
	// ClientSentAt is the device clock at compose time, display only.
	// Ordering always uses the server-assigned timestamp.
	ClientSentAt int64 `json:"client_sent_at,omitempty"`
	// ReceiverId and ReceiverName allow the lazy first-send session create.
	ReceiverId   string `json:"receiver_id,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

type SendMessageResponse struct {
	MessageId string `json:"message_id"`
	SessionId string `json:"session_id"`
	SentAt    int64  `json:"sent_at"`
}

type MessageResponse struct {
	Id           string `json:"id"`
	SenderId     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	Text         string `json:"text"`
	SentAt       int64  `json:"sent_at"`
	ClientSentAt int64  `json:"client_sent_at,omitempty"`
}

/// SessionState is the live per-screen view of one session: the presence
// line and summary as the viewer should render them right now. Deleted is
// set when the conversation was removed while being watched.
type SessionState struct {
	SessionId       string `json:"session_id"`
	LastMessage     string `json:"last_message,omitempty"`
	LastMessageAt   int64  `json:"last_message_at,omitempty"`
	TypingIndicator string `json:"typing_indicator,omitempty"`
	Deleted         bool   `json:"deleted,omitempty"`
}

// ConversationSummary is the derived, non-persisted list entry: the session
// joined with the resolved other participant.
type ConversationSummary struct {
	SessionId       string `json:"session_id"`
	OtherUserId     string `json:"other_user_id"`
	OtherUserName   string `json:"other_user_name"`
	OtherUserImage  string `json:"other_user_image,omitempty"`
	LastMessage     string `json:"last_message"`
	LastMessageAt   int64  `json:"last_message_at"`
	TypingIndicator string `json:"typing_indicator,omitempty"`
}
