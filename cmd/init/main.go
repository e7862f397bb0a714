package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cdr-backend/infra"

	"go.mongodb.org/mongo-driver/bson"
)

type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

func main() {
	// 讀取配置 - 自動尋找配置檔位置
	configPaths := []string{
		infra.DefaultConfigPath, // 當前目錄
		"../config.yml",         // 上層目錄 (cmd/init -> repo root)
		"../../config.yml",      // 上上層目錄
	}

	var cfg infra.Config
	var err error
	var usedPath string

	for _, path := range configPaths {
		cfg, err = infra.ReadConfig(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if err != nil {
		log.Fatalf("❌ 無法找到 config.yml 配置檔，已嘗試路徑: %v", configPaths)
	}

	fmt.Printf("✅ 找到配置檔: %s\n", usedPath)

	logger := infra.InitLogger("cdr-init")

	// 連接 MongoDB
	mongoDB, err := infra.NewMongoDB(infra.MongoConfig{
		URI:      cfg.MongoDB.URI,
		Database: cfg.MongoDB.Database,
	})
	if err != nil {
		log.Fatalf("❌ 連接 MongoDB 失敗: %v", err)
	}
	defer mongoDB.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("🚀 開始初始化 CDR 集合...")

	if err := infra.InitializeCdrCollections(ctx, logger, mongoDB.Database); err != nil {
		log.Fatalf("❌ 初始化 CDR 集合失敗: %v", err)
	}

	if err := printIndexInfo(ctx, mongoDB); err != nil {
		log.Printf("⚠️  讀取索引資訊失敗: %v", err)
	}

	fmt.Println("✅ 初始化完成")
}

// printIndexInfo 顯示 cdrs 集合的索引資訊
func printIndexInfo(ctx context.Context, mongoDB *infra.MongoDB) error {
	collection := mongoDB.GetCollection(infra.CdrCollectionName)
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return err
	}

	var indexes []indexSpec
	if err := cursor.All(ctx, &indexes); err != nil {
		return err
	}

	fmt.Println("\n📊 索引報告:")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📁 %s: %d 個索引\n", infra.CdrCollectionName, len(indexes))
	for i, index := range indexes {
		keyStrs := make([]string, 0, len(index.Key))
		for _, k := range index.Key {
			keyStrs = append(keyStrs, fmt.Sprintf("%s:%v", k.Key, k.Value))
		}

		unique := ""
		if index.Unique {
			unique = " [UNIQUE]"
		}
		fmt.Printf("   %d. %s%s\n", i+1, index.Name, unique)
		fmt.Printf("      └─ %v\n", keyStrs)
	}
	fmt.Println(strings.Repeat("=", 60))
	return nil
}
