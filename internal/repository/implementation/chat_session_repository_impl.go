package implementation

import (
	"context"
	"errors"
	"fmt"

	"campus-market-be/internal/entity"
	"campus-market-be/internal/mapper"
	"campus-market-be/internal/model"
	"campus-market-be/internal/repository/contract"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChatSessionRepositoryImpl struct {
	db     *mongo.Database
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *mongo.Database) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) collection() *mongo.Collection {
	return r.db.Collection(model.ChatDoc{}.CollectionName())
}

// Ensure is an atomic upsert-on-first-message: $setOnInsert writes the full
// document only when absent, so two near-simultaneous first sends cannot
// clobber each other. Strictly stronger than the check-then-create the
// mobile clients used to do.
func (r *ChatSessionRepositoryImpl) Ensure(ctx context.Context, session *entity.Session) error {
	doc := r.mapper.SessionToDoc(session)
	_, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": doc.Id},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", doc.Id, err)
	}
	return nil
}

func (r *ChatSessionRepositoryImpl) Find(ctx context.Context, id string) (*entity.Session, error) {
	var doc model.ChatDoc
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session %s: %w", id, err)
	}
	return r.mapper.SessionToEntity(&doc), nil
}

func (r *ChatSessionRepositoryImpl) FindAllByParticipant(ctx context.Context, userId string) ([]*entity.Session, error) {
	cursor, err := r.collection().Find(ctx,
		bson.M{"participants": userId},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find sessions of %s: %w", userId, err)
	}
	defer cursor.Close(ctx)

	var docs []*model.ChatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions of %s: %w", userId, err)
	}

	sessions := make([]*entity.Session, len(docs))
	for i, d := range docs {
		sessions[i] = r.mapper.SessionToEntity(d)
	}
	return sessions, nil
}

func (r *ChatSessionRepositoryImpl) MergeSummary(ctx context.Context, id, lastMessage string, at int64) error {
	_, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"last_message":    lastMessage,
			"updated_at":      at,
			"typing_user":     "",
			"typing_username": "",
			"typing_at":       int64(0),
		}},
	)
	if err != nil {
		return fmt.Errorf("merge summary %s: %w", id, err)
	}
	return nil
}

func (r *ChatSessionRepositoryImpl) MergeTyping(ctx context.Context, id, typingUserId, typingUserName string, at int64) error {
	_, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"typing_user":     typingUserId,
			"typing_username": typingUserName,
			"typing_at":       at,
		}},
	)
	if err != nil {
		return fmt.Errorf("merge typing %s: %w", id, err)
	}
	return nil
}

func (r *ChatSessionRepositoryImpl) MergeParticipantsInfo(ctx context.Context, id string, participants []entity.Participant) error {
	_, err := r.collection().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"participants_info": r.mapper.ParticipantsToInfos(participants),
		}},
	)
	if err != nil {
		return fmt.Errorf("merge participants info %s: %w", id, err)
	}
	return nil
}

func (r *ChatSessionRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Watch opens a change stream scoped to one session document and re-reads
// the document on every event. Each delivery is a full snapshot; nil means
// the session was deleted.
func (r *ChatSessionRepositoryImpl) Watch(ctx context.Context, id string) (<-chan *entity.Session, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}},
	}
	stream, err := r.collection().Watch(ctx, pipeline)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("watch session %s: %w", id, err)
	}

	ch := make(chan *entity.Session, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		// Initial snapshot covers the subscribe-to-first-event window.
		if snapshot, err := r.Find(ctx, id); err == nil {
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}

		for stream.Next(ctx) {
			snapshot, err := r.Find(ctx, id)
			if err != nil {
				continue
			}
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, contract.CancelFunc(cancel), nil
}

// WatchByParticipant re-queries the user's session list on every change to
// the chats collection. Deletions drop the fullDocument, so the filter only
// narrows inserts/updates and lets deletes through for a re-query.
func (r *ChatSessionRepositoryImpl) WatchByParticipant(ctx context.Context, userId string) (<-chan []*entity.Session, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.participants", Value: userId}},
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
	stream, err := r.collection().Watch(ctx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup),
	)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("watch sessions of %s: %w", userId, err)
	}

	ch := make(chan []*entity.Session, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		if snapshot, err := r.FindAllByParticipant(ctx, userId); err == nil {
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}

		for stream.Next(ctx) {
			snapshot, err := r.FindAllByParticipant(ctx, userId)
			if err != nil {
				continue
			}
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, contract.CancelFunc(cancel), nil
}
