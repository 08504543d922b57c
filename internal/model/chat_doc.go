package model

// ChatDoc is the session document as persisted in the "chats" collection.
// The schema evolved over the system's life, so a stored document may carry
// its participant display info in any of three shapes:
//
//	1. participants_info: array of {id, name, image} snapshots (current)
//	2. participant_names: map of id -> name (legacy)
//	3. participants only: bare id pair, no display info (oldest)
//
// The mapper normalizes all three into entity.Session; nothing outside the
// mapper branches on shape.
type ChatDoc struct {
	Id               string            `bson:"_id"`
	Participants     []string          `bson:"participants"`
	ParticipantsInfo []ParticipantInfo `bson:"participants_info,omitempty"`
	ParticipantNames map[string]string `bson:"participant_names,omitempty"`
	LastMessage      string            `bson:"last_message"`
	UpdatedAt        int64             `bson:"updated_at"`
	TypingUser       string            `bson:"typing_user"`
	TypingUsername   string            `bson:"typing_username"`
	TypingAt         int64             `bson:"typing_at,omitempty"`
	CreatedAt        int64             `bson:"created_at"`
}

type ParticipantInfo struct {
	Id    string `bson:"id"`
	Name  string `bson:"name"`
	Image string `bson:"image,omitempty"`
}

func (ChatDoc) CollectionName() string {
	return "chats"
}
