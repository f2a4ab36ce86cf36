package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderMergesSourcesInOrder(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
server:
  host: localhost
  port: 8080
  timeout: 3s
features:
  - a
  - b
`), 0o644))
	jsonPath := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server":{"port":9090,"debug":true}}`), 0o644))

	cfg, err := NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddJsonFile(filepath.Join(dir, "missing.json"), true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Get("server:host"))
	assert.Equal(t, "localhost", cfg.Get("server.host"))

	port, err := cfg.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	debug, err := cfg.GetBool("server:debug")
	require.NoError(t, err)
	assert.True(t, debug)

	timeout, err := cfg.GetDuration("server:timeout")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, timeout)

	assert.Equal(t, "fallback", cfg.GetWithDefault("server:name", "fallback"))
	assert.False(t, cfg.Exists("server:name"))

	_, err = cfg.GetInt("server:name")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "nope.yaml")).Build()
	assert.Error(t, err)
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("MODKIT_TEST_SERVER_PORT", "7070")
	t.Setenv("MODKIT_TEST_SERVER_NAME", "api")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("MODKIT_TEST_").Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 7070, port)
	assert.Equal(t, "api", cfg.Get("server:name"))
}

type serverOptions struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func TestSectionAndBind(t *testing.T) {
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "0.0.0.0", "port": 80},
	}).Build()
	require.NoError(t, err)

	section := cfg.GetSection("server")
	assert.Equal(t, "0.0.0.0", section.Get("host"))
	assert.Len(t, section.GetAll(), 2)

	var opts serverOptions
	require.NoError(t, section.Bind("", &opts))
	assert.Equal(t, serverOptions{Host: "0.0.0.0", Port: 80}, opts)

	loaded, err := Load[serverOptions](cfg, "server")
	require.NoError(t, err)
	assert.Equal(t, opts, loaded)

	_, err = Load[serverOptions](cfg, "client")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	def := serverOptions{Host: "default", Port: 1}
	got, err := LoadOrDefault(cfg, "client", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestInMemorySourceIsCopied(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1}}
	cfg, err := NewConfigurationBuilder().AddInMemory(data).Build()
	require.NoError(t, err)

	data["a"].(map[string]any)["b"] = 2
	v, err := cfg.GetInt("a:b")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// mutableSource 每次 Load 返回当前 data，用于验证重新加载
type mutableSource struct {
	mu   sync.Mutex
	data map[string]any
}

func (s *mutableSource) Name() string { return "mutable" }

func (s *mutableSource) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any)
	mergeMaps(out, s.data)
	return out, nil
}

func (s *mutableSource) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setNestedValue(s.data, key, value)
}

func TestReloadUpdatesOptions(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"port": 1}}}
	cfg, err := NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	cache := NewOptionsCache[serverOptions](cfg, "server")
	static := NewOption(cache.Get())
	monitor := NewOptionMonitor(cache)

	var changed []int
	monitor.OnChange(func(o serverOptions) { changed = append(changed, o.Port) })

	section := cfg.GetSection("server")
	src.set("server:port", 2)
	require.NoError(t, cfg.Reload())

	assert.Equal(t, 1, static.Value().Port)
	assert.Equal(t, 2, monitor.Value().Port)
	assert.Equal(t, "2", section.Get("port"))
	assert.Equal(t, []int{2}, changed)
}

func TestOptionsCacheMissingSection(t *testing.T) {
	cfg, err := NewConfigurationBuilder().Build()
	require.NoError(t, err)

	cache := NewOptionsCache[serverOptions](cfg, "server")
	assert.Equal(t, serverOptions{}, cache.Get())
	assert.ErrorIs(t, cache.Err(), ErrKeyNotFound)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	type withSlice struct {
		Items []string `json:"items"`
	}
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"list": map[string]any{"items": []any{"a"}},
	}).Build()
	require.NoError(t, err)

	cache := NewOptionsCache[withSlice](cfg, "list")
	snap := cache.Snapshot()
	snap.Items[0] = "changed"
	assert.Equal(t, "a", cache.Get().Items[0])
}

func TestWatchWithoutWatchableSources(t *testing.T) {
	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{}).BuildReloadable()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cfg.Watch(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestValueStoreAndPathCache(t *testing.T) {
	store := NewValueStore()
	store.Store(map[string]any{"key": "value"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "value", store.Load()["key"])
		}()
	}
	wg.Wait()

	cache := &PathCache{}
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b", "c"}, cache.GetPathSegments("a:b.c"))
}

func TestDecodeEtcdValue(t *testing.T) {
	assert.Equal(t, float64(8080), decodeEtcdValue([]byte("8080")))
	assert.Equal(t, map[string]any{"a": "b"}, decodeEtcdValue([]byte(`{"a":"b"}`)))
	assert.Equal(t, map[string]any{"host": "db"}, decodeEtcdValue([]byte("host: db")))
	assert.Equal(t, "plain text", decodeEtcdValue([]byte("plain text")))
}

func BenchmarkConfigGet(b *testing.B) {
	cfg, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{"host": "localhost", "port": 8080},
	}).Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg.Get("server:host")
	}
}
