package implementation

import (
	"context"
	"fmt"

	"campus-market-be/internal/entity"
	"campus-market-be/internal/mapper"
	"campus-market-be/internal/model"
	"campus-market-be/internal/repository/contract"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChatMessageRepositoryImpl struct {
	db     *mongo.Database
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *mongo.Database) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) collection() *mongo.Collection {
	return r.db.Collection(model.MessageDoc{}.CollectionName())
}

func (r *ChatMessageRepositoryImpl) Append(ctx context.Context, msg *entity.Message) error {
	_, err := r.collection().InsertOne(ctx, r.mapper.MessageToDoc(msg))
	if err != nil {
		return fmt.Errorf("append message to %s: %w", msg.SessionId, err)
	}
	return nil
}

func (r *ChatMessageRepositoryImpl) ListOrdered(ctx context.Context, sessionId string) ([]*entity.Message, error) {
	cursor, err := r.collection().Find(ctx,
		bson.M{"session_id": sessionId},
		options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", sessionId, err)
	}
	defer cursor.Close(ctx)

	var docs []*model.MessageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", sessionId, err)
	}
	return r.mapper.MessagesToEntities(docs), nil
}

func (r *ChatMessageRepositoryImpl) DeleteAllBySession(ctx context.Context, sessionId string) error {
	_, err := r.collection().DeleteMany(ctx, bson.M{"session_id": sessionId})
	if err != nil {
		return fmt.Errorf("delete messages of %s: %w", sessionId, err)
	}
	return nil
}

// WatchOrdered delivers the entire ordered log on subscribe and again after
// every change. Full-state replacement keeps the consumer side trivially
// restartable; there is no diffing protocol to get out of sync.
func (r *ChatMessageRepositoryImpl) WatchOrdered(ctx context.Context, sessionId string) (<-chan []*entity.Message, contract.CancelFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.session_id", Value: sessionId}},
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
	stream, err := r.collection().Watch(ctx, pipeline)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("watch messages of %s: %w", sessionId, err)
	}

	ch := make(chan []*entity.Message, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		if snapshot, err := r.ListOrdered(ctx, sessionId); err == nil {
			select {
			case ch <- snapshot:
			case <-ctx.Done():
				return
			}
		}

		for stream.Next(ctx) {
			snapshot, err := r.ListOrdered(ctx, sessionId)
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
