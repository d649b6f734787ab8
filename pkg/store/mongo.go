package store

import (
	"context"
	"fmt"
	"time"

	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

// Mongo stores one collection per kind with a unique index on the natural
// key. add_ts is only written when a document is created.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	logger   logger.Logger
}

// OpenMongo connects, pings and ensures the key indexes
func OpenMongo(ctx context.Context, uri, database string, log logger.Logger) (*Mongo, error) {
	if uri == "" {
		return nil, errs.New(errs.ErrorTypeStorage, "mongo URI is required")
	}
	if database == "" {
		database = "dyfav"
	}

	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "ping mongo")
	}

	m := &Mongo{client: client, database: client.Database(database), logger: log}
	if err := m.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) createIndexes(ctx context.Context) error {
	for _, r := range []record{&ContentRecord{}, &CommentRecord{}, &CreatorRecord{}} {
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: r.keyColumn(), Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := m.collection(r).Indexes().CreateOne(ctx, model); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "create index on "+tableNames[r.kind()])
		}
	}
	return nil
}

func (m *Mongo) collection(r record) *mongo.Collection {
	return m.database.Collection(tableNames[r.kind()])
}

func (m *Mongo) StoreContent(ctx context.Context, rec ContentRecord) error {
	return m.upsert(ctx, &rec)
}

func (m *Mongo) StoreComment(ctx context.Context, rec CommentRecord) error {
	return m.upsert(ctx, &rec)
}

func (m *Mongo) StoreCreator(ctx context.Context, rec CreatorRecord) error {
	return m.upsert(ctx, &rec)
}

// Close disconnects the client
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Mongo) upsert(ctx context.Context, r record) error {
	r.timestamps().stamp(nowMillis())

	set := bson.D{}
	for _, f := range r.fields() {
		if f.name == "add_ts" {
			continue
		}
		set = append(set, bson.E{Key: f.name, Value: f.value})
	}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "add_ts", Value: r.timestamps().AddTS}}},
	}
	filter := bson.D{{Key: r.keyColumn(), Value: r.key()}}
	opts := options.Update().SetUpsert(r.insertable())

	res, err := m.collection(r).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("store %s %s", r.kind(), r.key()))
	}
	if !r.insertable() && res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", r.kind(), r.key(), ErrNotInserted)
	}
	return nil
}
