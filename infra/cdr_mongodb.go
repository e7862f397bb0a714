package infra

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CDR 相關集合名稱
const (
	CdrCollectionName      = "cdrs"
	CountersCollectionName = "counters"
	CdrCounterID           = "cdrs"
)

// CdrIndexes 回傳 cdrs 集合的索引定義，對應各查詢端點與報表過濾
func CdrIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "source", Value: 1}},
			Options: options.Index().SetName("source_index"),
		},
		{
			Keys:    bson.D{{Key: "destination", Value: 1}},
			Options: options.Index().SetName("destination_index"),
		},
		{
			Keys:    bson.D{{Key: "service_type", Value: 1}},
			Options: options.Index().SetName("service_type_index"),
		},
		{
			Keys: bson.D{
				{Key: "start_time", Value: 1},
				{Key: "service_type", Value: 1},
			},
			Options: options.Index().SetName("start_time_service_type_index"),
		},
		{
			Keys:    bson.D{{Key: "file_name", Value: 1}},
			Options: options.Index().SetName("file_name_index"),
		},
	}
}

// InitializeCdrCollections 建立 cdrs 索引並初始化 ID 計數器
func InitializeCdrCollections(ctx context.Context, logger zerolog.Logger, db *mongo.Database) error {
	collection := db.Collection(CdrCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, CdrIndexes())
	if err != nil {
		logger.Error().Err(err).Msg("創建 cdrs 集合索引失敗")
		return err
	}
	logger.Info().Msg("cdrs 集合索引創建完成")

	if err := seedCdrCounter(ctx, db); err != nil {
		logger.Error().Err(err).Msg("初始化 cdrs 計數器失敗")
		return err
	}
	logger.Info().Msg("cdrs 計數器初始化完成")
	return nil
}

// seedCdrCounter 計數器不存在時以目前最大 _id 建立
func seedCdrCounter(ctx context.Context, db *mongo.Database) error {
	counters := db.Collection(CountersCollectionName)

	var maxID int64
	var last struct {
		ID int64 `bson:"_id"`
	}
	err := db.Collection(CdrCollectionName).
		FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).
		Decode(&last)
	switch {
	case err == nil:
		maxID = last.ID
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return err
	}

	_, err = counters.UpdateOne(ctx,
		bson.M{"_id": CdrCounterID},
		bson.M{"$max": bson.M{"seq": maxID}},
		options.Update().SetUpsert(true),
	)
	return err
}
