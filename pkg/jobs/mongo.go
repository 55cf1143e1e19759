package jobs

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string // default "stampforge"
	Collection string // default "jobs"
}

// MongoStore persists jobs in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "stampforge"
	}
	if cfg.Collection == "" {
		cfg.Collection = "jobs"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, storageErr(err, "connect to mongodb")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, storageErr(err, "ping mongodb")
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, storageErr(err, "create index")
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Create(ctx context.Context, job *Job) error {
	if _, err := s.coll.InsertOne(ctx, job); err != nil {
		return storageErr(err, "insert job %s", job.ID)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageErr(err, "load job %s", id)
	}
	return &job, nil
}

func (s *MongoStore) Update(ctx context.Context, job *Job) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return storageErr(err, "update job %s", job.ID)
	}
	if res.MatchedCount == 0 {
		return notFound(job.ID)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]*Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageErr(err, "list jobs")
	}
	var out []*Job
	if err := cur.All(ctx, &out); err != nil {
		return nil, storageErr(err, "decode jobs")
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
