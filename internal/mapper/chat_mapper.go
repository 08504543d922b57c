package mapper

import (
	"campus-market-be/internal/entity"
	"campus-market-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// SessionToEntity normalizes a stored session document into the canonical
// entity, whichever of the three historical shapes it was written in.
// Tier 1: participants_info (full snapshots). Tier 2: participant_names map.
// Tier 3: bare participant ids with the name left as the "unknown" sentinel.
func (m *ChatMapper) SessionToEntity(d *model.ChatDoc) *entity.Session {
	if d == nil {
		return nil
	}

	s := &entity.Session{
		Id:              d.Id,
		LastMessageText: d.LastMessage,
		LastMessageAt:   d.UpdatedAt,
		TypingUserId:    d.TypingUser,
		TypingUserName:  d.TypingUsername,
		TypingAt:        d.TypingAt,
		CreatedAt:       d.CreatedAt,
	}

	switch {
	case len(d.ParticipantsInfo) > 0:
		for _, info := range d.ParticipantsInfo {
			s.Participants = append(s.Participants, entity.Participant{
				Id:    info.Id,
				Name:  info.Name,
				Image: info.Image,
			})
		}
	case len(d.ParticipantNames) > 0:
		for _, id := range d.Participants {
			name := d.ParticipantNames[id]
			if name == "" {
				name = entity.UnknownParticipantName
			}
			s.Participants = append(s.Participants, entity.Participant{
				Id:   id,
				Name: name,
			})
		}
	default:
		for _, id := range d.Participants {
			s.Participants = append(s.Participants, entity.Participant{
				Id:   id,
				Name: entity.UnknownParticipantName,
			})
		}
	}

	return s
}

// SessionToDoc writes only the current shape. Legacy shapes are read-side
// compatibility; nothing writes them anymore.
func (m *ChatMapper) SessionToDoc(s *entity.Session) *model.ChatDoc {
	if s == nil {
		return nil
	}

	d := &model.ChatDoc{
		Id:             s.Id,
		LastMessage:    s.LastMessageText,
		UpdatedAt:      s.LastMessageAt,
		TypingUser:     s.TypingUserId,
		TypingUsername: s.TypingUserName,
		TypingAt:       s.TypingAt,
		CreatedAt:      s.CreatedAt,
	}
	for _, p := range s.Participants {
		d.Participants = append(d.Participants, p.Id)
		d.ParticipantsInfo = append(d.ParticipantsInfo, model.ParticipantInfo{
			Id:    p.Id,
			Name:  p.Name,
			Image: p.Image,
		})
	}
	return d
}

func (m *ChatMapper) ParticipantsToInfos(participants []entity.Participant) []model.ParticipantInfo {
	infos := make([]model.ParticipantInfo, 0, len(participants))
	for _, p := range participants {
		infos = append(infos, model.ParticipantInfo{Id: p.Id, Name: p.Name, Image: p.Image})
	}
	return infos
}

func (m *ChatMapper) MessageToEntity(d *model.MessageDoc) *entity.Message {
	if d == nil {
		return nil
	}
	return &entity.Message{
		Id:           d.Id,
		SessionId:    d.SessionId,
		SenderId:     d.SenderId,
		SenderName:   d.SenderName,
		Text:         d.Text,
		SentAt:       d.SentAt,
		ClientSentAt: d.ClientSentAt,
	}
}

func (m *ChatMapper) MessageToDoc(msg *entity.Message) *model.MessageDoc {
	if msg == nil {
		return nil
	}
	return &model.MessageDoc{
		Id:           msg.Id,
		SessionId:    msg.SessionId,
		SenderId:     msg.SenderId,
		SenderName:   msg.SenderName,
		Text:         msg.Text,
		SentAt:       msg.SentAt,
		ClientSentAt: msg.ClientSentAt,
	}
}

func (m *ChatMapper) MessagesToEntities(docs []*model.MessageDoc) []*entity.Message {
	entities := make([]*entity.Message, len(docs))
	for i, d := range docs {
		entities[i] = m.MessageToEntity(d)
	}
	return entities
}

// ProfileToEntity flattens the legacy avatar field names: first non-empty
// of profile_image, image_url, image, photo_url wins.
func (m *ChatMapper) ProfileToEntity(d *model.UserDoc) *entity.Profile {
	if d == nil {
		return nil
	}
	image := d.ProfileImage
	if image == "" {
		image = d.ImageUrl
	}
	if image == "" {
		image = d.Image
	}
	if image == "" {
		image = d.PhotoURL
	}
	return &entity.Profile{
		Id:         d.Id,
		Name:       d.Name,
		University: d.University,
		Image:      image,
	}
}
