package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the durable variant. Each room is one record holding the JSON
// document as an opaque payload, which keeps the persisted shape identical to
// the file-backed variant.
type MongoStore struct {
	collection *mongo.Collection
}

type roomRecord struct {
	Code      string    `bson:"code"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// NewMongoStore creates a store over the "rooms" collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("rooms")}
}

func (s *MongoStore) Get(ctx context.Context, code string) (map[string]any, error) {
	var record roomRecord
	err := s.collection.FindOne(ctx, bson.M{"code": code}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("load room %s: %w", code, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(record.Payload), &doc); err != nil {
		// Malformed payload degrades to "room does not exist yet".
		return nil, nil
	}
	return doc, nil
}

func (s *MongoStore) Put(ctx context.Context, code string, doc map[string]any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", code, err)
	}
	record := roomRecord{Code: code, Payload: string(payload), UpdatedAt: time.Now()}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"code": code}, record, opts); err != nil {
		return fmt.Errorf("save room %s: %w", code, err)
	}
	return nil
}
