package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/database"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
)

type User struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

type Order struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint
	Amount int
}

// UserRepository 通过字段注入获取命名实例
type UserRepository struct {
	DB      *gorm.DB `di:"database.main"`
	Reports *gorm.DB `di:"database.reports,?"`
}

func memoryDSN(t *testing.T, name string) string {
	return fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", t.Name(), name)
}

func TestDatabaseModule(t *testing.T) {
	root := core.NewModule("Root",
		core.Imports(database.NewModule(
			database.WithSQLite("main", memoryDSN(t, "main"), func(o *database.Options) {
				o.AutoMigrate = []any{&User{}, &Order{}}
				o.MaxOpenConns = 5
			}),
		)),
		core.Providers(di.Class[*UserRepository](nil, di.WithSingleton())),
	)
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))

	repo, err := di.Resolve[*UserRepository](ctx, app, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.DB)
	assert.Nil(t, repo.Reports)

	require.NoError(t, repo.DB.WithContext(ctx).Create(&User{Name: "alice"}).Error)
	var found User
	require.NoError(t, repo.DB.WithContext(ctx).First(&found, "name = ?", "alice").Error)
	assert.Equal(t, "alice", found.Name)
	assert.True(t, repo.DB.Migrator().HasTable(&Order{}))

	sqlDB, err := repo.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)

	// 唯一实例同时作为默认实例
	def, err := di.Resolve[*gorm.DB](ctx, app, nil)
	require.NoError(t, err)
	assert.Same(t, repo.DB, def)

	require.NoError(t, app.Stop(ctx))
	assert.Error(t, sqlDB.PingContext(ctx))
}

func TestDefaultDatabaseIsPreferred(t *testing.T) {
	root := core.NewModule("Root", core.Imports(database.NewModule(
		database.WithSQLite("replica", memoryDSN(t, "replica")),
		database.WithSQLite(database.DefaultName, memoryDSN(t, "default")),
	)))
	app, err := core.New(root, core.WithLogger(logging.Nop()))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, app.Init(ctx))
	defer app.Stop(ctx)

	def, err := di.Resolve[*gorm.DB](ctx, app, nil)
	require.NoError(t, err)
	primary, err := di.ResolveToken(ctx, app, database.Named(database.DefaultName), nil)
	require.NoError(t, err)
	assert.Same(t, primary, def)

	factory, err := di.Resolve[*database.Factory](ctx, app, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"replica", database.DefaultName}, factory.Names())
}

func TestBuilderErrors(t *testing.T) {
	b := database.NewBuilder().
		Add("main", sqlite.Open(memoryDSN(t, "main")), nil).
		Add("main", sqlite.Open(memoryDSN(t, "main")), nil).
		Add("broken", nil, nil).
		Add("noisy", sqlite.Open(memoryDSN(t, "main")), func(o *database.Options) { o.LogLevel = "loud" })

	_, err := b.Build(context.Background(), logging.Nop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "database 'main' already configured")
	assert.ErrorContains(t, err, "invalid configuration for 'broken'")
	assert.ErrorContains(t, err, `unknown database log level "loud"`)
}

func TestFactory(t *testing.T) {
	f := database.NewFactory(nil)
	ctx := context.Background()

	opts := database.NewDefaultOptions("main", sqlite.Open(memoryDSN(t, "main")))
	opts.MaxLifetime = time.Minute
	require.NoError(t, f.Register(ctx, *opts))
	assert.ErrorContains(t, f.Register(ctx, *opts), "already registered")

	db, err := f.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())

	_, err = f.Get("missing")
	assert.ErrorContains(t, err, "database 'missing' not found")

	var visited []string
	f.Each(func(name string, _ *gorm.DB) { visited = append(visited, name) })
	assert.Equal(t, []string{"main"}, visited)

	require.NoError(t, f.Close())
	assert.Empty(t, f.Names())
}

func TestNamedTokensAreStable(t *testing.T) {
	assert.Same(t, database.Named("main"), database.Named("main"))
	assert.NotSame(t, database.Named("main"), database.Named("reports"))
	assert.Equal(t, "database.main", database.Key("main"))
}
