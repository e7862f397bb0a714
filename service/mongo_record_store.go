package service

import (
	"context"
	"errors"
	"fmt"

	"cdr-backend/infra"
	"cdr-backend/model"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecordStore stores CDRs in MongoDB with integer IDs drawn from a counters document.
type MongoRecordStore struct {
	logger  zerolog.Logger
	mongoDB *infra.MongoDB
}

func NewMongoRecordStore(logger zerolog.Logger, mongoDB *infra.MongoDB) *MongoRecordStore {
	return &MongoRecordStore{
		logger:  logger.With().Str("module", "mongo_record_store").Logger(),
		mongoDB: mongoDB,
	}
}

// nextID 以 $inc 原子地取得下一個 CDR ID
func (s *MongoRecordStore) nextID(ctx context.Context) (int64, error) {
	coll := s.mongoDB.GetCollection(infra.CountersCollectionName)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := coll.FindOneAndUpdate(ctx,
		bson.M{"_id": infra.CdrCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate cdr id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoRecordStore) Save(ctx context.Context, cdr *model.Cdr) (*model.Cdr, error) {
	coll := s.mongoDB.GetCollection(infra.CdrCollectionName)

	if cdr.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return nil, err
		}
		cdr.ID = id
		if _, err := coll.InsertOne(ctx, cdr); err != nil {
			s.logger.Error().Err(err).Int64("cdr_id", id).Msg("新增 CDR 失敗 (Failed to insert cdr)")
			return nil, fmt.Errorf("insert cdr %d: %w", id, err)
		}
		return cdr, nil
	}

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": cdr.ID}, cdr, options.Replace().SetUpsert(true))
	if err != nil {
		s.logger.Error().Err(err).Int64("cdr_id", cdr.ID).Msg("更新 CDR 失敗 (Failed to replace cdr)")
		return nil, fmt.Errorf("replace cdr %d: %w", cdr.ID, err)
	}
	return cdr, nil
}

func (s *MongoRecordStore) FindByID(ctx context.Context, id int64) (*model.Cdr, error) {
	coll := s.mongoDB.GetCollection(infra.CdrCollectionName)

	var cdr model.Cdr
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&cdr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cdr %d: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find cdr %d: %w", id, err)
	}
	return &cdr, nil
}

func (s *MongoRecordStore) FindByField(ctx context.Context, field RecordField, value string) ([]*model.Cdr, error) {
	if _, err := fieldValue(&model.Cdr{}, field); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return s.find(ctx, bson.M{string(field): value})
}

func (s *MongoRecordStore) FindAll(ctx context.Context) ([]*model.Cdr, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoRecordStore) find(ctx context.Context, filter bson.M) ([]*model.Cdr, error) {
	coll := s.mongoDB.GetCollection(infra.CdrCollectionName)

	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query cdrs: %w", err)
	}
	defer cursor.Close(ctx)

	cdrs := make([]*model.Cdr, 0)
	if err := cursor.All(ctx, &cdrs); err != nil {
		return nil, fmt.Errorf("decode cdrs: %w", err)
	}
	return cdrs, nil
}

func (s *MongoRecordStore) DeleteByID(ctx context.Context, id int64) error {
	coll := s.mongoDB.GetCollection(infra.CdrCollectionName)

	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete cdr %d: %w", id, err)
	}
	return nil
}

func (s *MongoRecordStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	coll := s.mongoDB.GetCollection(infra.CdrCollectionName)

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count cdr %d: %w", id, err)
	}
	return n > 0, nil
}
