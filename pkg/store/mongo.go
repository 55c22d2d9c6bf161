package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultConnectTimeout = 10 * time.Second

// MongoConfig holds connection settings for MongoStore.
type MongoConfig struct {
	URI              string
	Database         string
	Collection       string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// MongoStore implements RecordStore on a MongoDB collection. Timestamps are assigned by the
// server ($currentDate / $$NOW) and every write increments the version field.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := NewMongoStoreFromCollection(client.Database(cfg.Database).Collection(cfg.Collection), cfg.OperationTimeout)
	s.client = client

	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return s, nil
}

// NewMongoStoreFromCollection wraps an existing collection handle.
func NewMongoStoreFromCollection(coll *mongo.Collection, opTimeout time.Duration) *MongoStore {
	return &MongoStore{collection: coll, opTimeout: opTimeout}
}

// EnsureIndexes creates the nickname lookup index and the ranking order index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: FieldNickname, Value: 1}},
			Options: options.Index().SetName("nickname_1"),
		},
		{
			Keys:    rankingSort(),
			Options: options.Index().SetName("ranking_order"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var rec Record
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) Create(ctx context.Context, id string, fields Fields) (Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	// The filter never matches an existing document, so the upsert either inserts or collides
	// on _id.
	filter := bson.M{"_id": id, FieldVersion: bson.M{"$exists": false}}
	update := buildCreateUpdate(fields)

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rec Record
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if mongo.IsDuplicateKeyError(err) {
		return Record{}, ErrConflict
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to create record %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) Set(ctx context.Context, id string, fields Fields, merge bool) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var update interface{}
	if merge {
		update = buildUpsertUpdate(fields, time.Now().UTC())
	} else {
		update = buildReplacePipeline(fields)
	}

	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set record %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, fields Fields) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, buildMergeUpdate(fields))
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateIf(ctx context.Context, id string, version int64, fields Fields) (Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec Record
	err := s.collection.FindOneAndUpdate(ctx, versionFilter(id, version), buildMergeUpdate(fields), opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrConflict
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return rec, nil
}

func (s *MongoStore) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, bson.M{FieldNickname: nickname}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up nickname: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) TopByLevel(ctx context.Context, limit int) ([]Record, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	opts := options.Find().SetSort(rankingSort()).SetLimit(int64(limit))
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking window: %w", err)
	}
	defer cur.Close(ctx)

	records := make([]Record, 0, limit)
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode ranking window: %w", err)
	}
	return records, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.collection.Database().Client().Ping(ctx, nil)
}

// Close disconnects the client if this store owns it.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// versionFilter matches id at version. Documents written before versioning have no version
// field and decode as 0, so version 0 also matches a missing field. An explicit null is left
// out because $inc rejects it.
func versionFilter(id string, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": id, "$or": bson.A{
			bson.M{FieldVersion: int64(0)},
			bson.M{FieldVersion: bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": id, FieldVersion: version}
}

func rankingSort() bson.D {
	return bson.D{
		{Key: FieldLevel, Value: -1},
		{Key: FieldFirstAchievedAt, Value: 1},
		{Key: "_id", Value: 1},
	}
}

// buildMergeUpdate turns fields into a $set/$currentDate/$inc update document. Store-owned
// fields supplied by the caller are ignored.
func buildMergeUpdate(fields Fields) bson.M {
	set := bson.M{}
	currentDate := bson.M{FieldUpdatedAt: true}

	for name, value := range fields {
		if name == FieldUpdatedAt || name == FieldVersion || name == "_id" {
			continue
		}
		if IsServerTimestamp(value) {
			currentDate[name] = true
			continue
		}
		set[name] = value
	}

	update := bson.M{
		"$currentDate": currentDate,
		"$inc":         bson.M{FieldVersion: int64(1)},
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	return update
}

// buildCreateUpdate is a merge update for an upsert that can only insert, so createdAt is
// stamped by the server unconditionally.
func buildCreateUpdate(fields Fields) bson.M {
	update := buildMergeUpdate(fields)
	if _, ok := fields[FieldCreatedAt]; !ok {
		update["$currentDate"].(bson.M)[FieldCreatedAt] = true
	}
	return update
}

// buildUpsertUpdate is a merge update for an upsert that may hit an existing document;
// createdAt is only written when it inserts.
func buildUpsertUpdate(fields Fields, now time.Time) bson.M {
	update := buildMergeUpdate(fields)
	if _, ok := fields[FieldCreatedAt]; !ok {
		update["$setOnInsert"] = bson.M{FieldCreatedAt: now}
	}
	return update
}

// buildReplacePipeline replaces the document body while keeping _id, createdAt and the
// version counter. Values go through $literal so strings starting with "$" stay data.
func buildReplacePipeline(fields Fields) mongo.Pipeline {
	body := bson.M{}
	stamps := bson.M{FieldUpdatedAt: "$$NOW"}

	for name, value := range fields {
		if name == FieldUpdatedAt || name == FieldVersion || name == "_id" {
			continue
		}
		if IsServerTimestamp(value) {
			stamps[name] = "$$NOW"
			continue
		}
		body[name] = bson.M{"$literal": value}
	}

	kept := bson.M{
		"_id":          "$_id",
		FieldCreatedAt: bson.M{"$ifNull": bson.A{"$" + FieldCreatedAt, "$$NOW"}},
		FieldVersion:   bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + FieldVersion, int64(0)}}, int64(1)}},
	}

	return mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.M{"$mergeObjects": bson.A{kept, body, stamps}}}},
	}
}
