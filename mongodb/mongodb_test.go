package mongodb_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/gocrud/modkit/mongodb"
)

// EventStore 通过字段注入获取命名客户端
type EventStore struct {
	Client *mongo.Client `di:"mongodb.events"`
}

func offline(o *mongodb.ClientOptions) {
	o.PingOnStart = false
	o.Database = "events"
}

func TestMongoModule(t *testing.T) {
	root := core.NewModule("Root",
		core.Imports(mongodb.NewModule(
			mongodb.WithClient("events", "mongodb://127.0.0.1:27999", offline),
		)),
		core.Providers(di.Class[*EventStore](nil, di.WithSingleton())),
	)
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))

	store, err := di.Resolve[*EventStore](ctx, app, nil)
	require.NoError(t, err)
	require.NotNil(t, store.Client)

	def, err := di.Resolve[*mongo.Client](ctx, app, nil)
	require.NoError(t, err)
	assert.Same(t, store.Client, def)

	factory, err := di.Resolve[*mongodb.Factory](ctx, app, nil)
	require.NoError(t, err)
	db, err := factory.Database("events")
	require.NoError(t, err)
	assert.Equal(t, "events", db.Name())

	_, err = factory.Database("missing")
	assert.ErrorContains(t, err, "mongo client 'missing' not found")

	require.NoError(t, app.Stop(ctx))
	assert.Error(t, store.Client.Ping(ctx, nil))
}

func TestBuilderErrors(t *testing.T) {
	b := mongodb.NewBuilder().
		AddClient("a", "mongodb://localhost", nil).
		AddClient("a", "mongodb://localhost", nil).
		AddClient("b", "", nil).
		AddClient("c", "mongodb://localhost", func(o *mongodb.ClientOptions) { o.MinPoolSize = 500 })

	_, err := b.Build(context.Background(), logging.Nop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "mongo client 'a' already configured")
	assert.ErrorContains(t, err, "mongo uri is required")
	assert.ErrorContains(t, err, "min pool size exceeds max pool size")
}

func TestDatabaseWithoutDefault(t *testing.T) {
	f := mongodb.NewFactory(nil)
	opts := mongodb.NewDefaultOptions("plain", "mongodb://127.0.0.1:27999")
	opts.PingOnStart = false
	require.NoError(t, f.Register(context.Background(), *opts))

	_, err := f.Database("plain")
	assert.ErrorContains(t, err, "has no default database")
	require.NoError(t, f.Close())
}

func TestNamedTokensAreStable(t *testing.T) {
	assert.Same(t, mongodb.Named("events"), mongodb.Named("events"))
	assert.Equal(t, "mongodb.events", mongodb.Key("events"))
}

func TestLiveMongo(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	root := core.NewModule("Root", core.Imports(mongodb.NewModule(
		mongodb.WithClient(mongodb.DefaultName, "mongodb://localhost:27017", func(o *mongodb.ClientOptions) {
			o.Database = "modkit_test"
		}),
	)))
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))
	defer app.Stop(ctx)

	factory, err := di.Resolve[*mongodb.Factory](ctx, app, nil)
	require.NoError(t, err)
	db, err := factory.Database(mongodb.DefaultName)
	require.NoError(t, err)

	coll := db.Collection("events")
	_, err = coll.InsertOne(ctx, bson.D{{Key: "kind", Value: "created"}})
	require.NoError(t, err)
	n, err := coll.CountDocuments(ctx, bson.D{{Key: "kind", Value: "created"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	require.NoError(t, coll.Drop(ctx))
}
