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
)

type UserProfileRepositoryImpl struct {
	db     *mongo.Database
	mapper *mapper.ChatMapper
}

func NewUserProfileRepository(db *mongo.Database) contract.UserProfileRepository {
	return &UserProfileRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *UserProfileRepositoryImpl) Find(ctx context.Context, id string) (*entity.Profile, error) {
	var doc model.UserDoc
	err := r.db.Collection(model.UserDoc{}.CollectionName()).
		FindOne(ctx, bson.M{"_id": id}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find profile %s: %w", id, err)
	}
	return r.mapper.ProfileToEntity(&doc), nil
}
