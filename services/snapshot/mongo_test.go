package snapshotsvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
)

func TestQueryFilter(t *testing.T) {
	from := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)
	key := dashboard.Key(school.Filter{GroupID: "g1"}, stats.Monthly)

	tests := []struct {
		name   string
		filter dashboard.SnapshotFilter
		want   bson.M
	}{
		{
			name:   "key only",
			filter: dashboard.SnapshotFilter{Filter: school.Filter{GroupID: "g1"}, Interval: stats.Monthly},
			want:   bson.M{"key": key},
		},
		{
			name:   "from",
			filter: dashboard.SnapshotFilter{Filter: school.Filter{GroupID: "g1"}, Interval: stats.Monthly, From: from},
			want:   bson.M{"key": key, "taken_at": bson.M{"$gte": from}},
		},
		{
			name:   "range",
			filter: dashboard.SnapshotFilter{Filter: school.Filter{GroupID: "g1"}, Interval: stats.Monthly, From: from, To: to},
			want:   bson.M{"key": key, "taken_at": bson.M{"$gte": from, "$lte": to}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryFilter(tt.filter))
		})
	}
}

func TestFindOptions(t *testing.T) {
	tests := []struct {
		limit int
		want  int64
	}{
		{limit: 0, want: defaultLimit},
		{limit: -3, want: defaultLimit},
		{limit: 10, want: 10},
		{limit: 500, want: defaultLimit},
	}
	for _, tt := range tests {
		opts := findOptions(dashboard.SnapshotFilter{Limit: tt.limit})
		require.NotNil(t, opts.Limit)
		assert.Equal(t, tt.want, *opts.Limit)
		assert.Equal(t, bson.D{{Key: "taken_at", Value: -1}}, opts.Sort)
	}
}

// TestMongoStore runs against TEST_MONGO_URI, and is skipped when unset.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.Mongo.URI = uri

	client, err := Connect(ctx, conf)
	require.NoError(t, err)
	db := client.Database("escolar_test")
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	store := NewMongoStore(db, "snapshots")
	require.NoError(t, store.EnsureIndexes(ctx))

	filter := school.Filter{PeriodID: "p1"}
	day := time.Date(2021, time.January, 4, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.SaveSnapshot(ctx, dashboard.Snapshot{
			Key:     dashboard.Key(filter, stats.Weekly),
			TakenAt: day.AddDate(0, 0, i),
			Metrics: stats.InstitutionMetrics{Counts: stats.Counts{Students: 10 + i}},
		})
		require.NoError(t, err)
	}
	_, err = store.SaveSnapshot(ctx, dashboard.Snapshot{Key: dashboard.Key(filter, stats.Monthly), TakenAt: day})
	require.NoError(t, err)

	snaps, err := store.QuerySnapshots(ctx, dashboard.SnapshotFilter{Filter: filter, Interval: stats.Weekly, From: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 12, snaps[0].Metrics.Counts.Students)
	assert.Equal(t, 11, snaps[1].Metrics.Counts.Students)
	assert.NotEmpty(t, snaps[0].ID)

	snaps, err = store.QuerySnapshots(ctx, dashboard.SnapshotFilter{Filter: filter, Interval: stats.Weekly, Limit: 1})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, day.AddDate(0, 0, 2).Equal(snaps[0].TakenAt))
}
