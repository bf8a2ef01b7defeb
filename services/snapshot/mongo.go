package snapshotsvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
)

const defaultLimit = 50

// MongoStore persists metrics snapshots in a MongoDB collection.
type MongoStore struct {
	col *mongo.Collection
}

var _ dashboard.SnapshotStore = (*MongoStore)(nil)

// Connect opens a MongoDB client and pings the server.
func Connect(ctx context.Context, conf *core.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Mongo.URI).SetAppName(conf.AppName))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongo")
	}
	return client, nil
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{col: db.Collection(collection)}
}

// EnsureIndexes creates the {key, taken_at} index used by QuerySnapshots.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "key", Value: 1}, {Key: "taken_at", Value: -1}},
	})
	return errors.Wrap(err, "creating snapshot index")
}

func (s *MongoStore) SaveSnapshot(ctx context.Context, snap dashboard.Snapshot) (dashboard.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	snap.TakenAt = snap.TakenAt.UTC().Truncate(time.Millisecond) // bson dates hold milliseconds

	if _, err := s.col.InsertOne(ctx, snap); err != nil {
		return dashboard.Snapshot{}, errors.Wrap(err, "inserting snapshot")
	}
	return snap, nil
}

func (s *MongoStore) QuerySnapshots(ctx context.Context, filter dashboard.SnapshotFilter) ([]dashboard.Snapshot, error) {
	cur, err := s.col.Find(ctx, queryFilter(filter), findOptions(filter))
	if err != nil {
		return nil, errors.Wrap(err, "finding snapshots")
	}
	defer cur.Close(ctx)

	snaps := make([]dashboard.Snapshot, 0)
	if err := cur.All(ctx, &snaps); err != nil {
		return nil, errors.Wrap(err, "decoding snapshots")
	}
	return snaps, nil
}

func queryFilter(filter dashboard.SnapshotFilter) bson.M {
	q := bson.M{"key": dashboard.Key(filter.Filter, filter.Interval)}

	takenAt := bson.M{}
	if !filter.From.IsZero() {
		takenAt["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		takenAt["$lte"] = filter.To
	}
	if len(takenAt) > 0 {
		q["taken_at"] = takenAt
	}
	return q
}

func findOptions(filter dashboard.SnapshotFilter) *options.FindOptions {
	limit := filter.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}
	return options.Find().
		SetSort(bson.D{{Key: "taken_at", Value: -1}}).
		SetLimit(int64(limit))
}
