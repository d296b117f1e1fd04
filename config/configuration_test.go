package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestLayeredSources(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
web:
  port: 8080
  mode: release
container:
  eager: true
`), 0o644))
	jsonPath := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"web": {"port": 9090}}`), 0o644))
	t.Setenv("BEANTEST_WEB_HOST", "0.0.0.0")

	cfg, err := NewConfigurationBuilder().
		AddYamlFile(yamlPath).
		AddJsonFile(jsonPath).
		AddJsonFile(filepath.Join(dir, "missing.json"), true).
		AddEnvironmentVariables("BEANTEST_").
		Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)
	assert.Equal(t, "release", cfg.Get("web.mode"))
	assert.Equal(t, "0.0.0.0", cfg.Get("web:host"))

	eager, err := cfg.GetBool("container:eager")
	require.NoError(t, err)
	assert.True(t, eager)
}

func TestMissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddYamlFile(filepath.Join(t.TempDir(), "nope.yaml")).Build()
	assert.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	cfg := New(map[string]any{
		"a": "1500ms",
		"b": 250,
		"c": true,
	})

	d, err := cfg.GetDuration("a")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = cfg.GetDuration("b")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = cfg.GetDuration("c")
	assert.Error(t, err)
	_, err = cfg.GetDuration("missing")
	assert.Error(t, err)
}

func TestSectionAndLoad(t *testing.T) {
	type redisOptions struct {
		Addr string `json:"addr"`
		DB   int    `json:"db"`
	}
	cfg := New(map[string]any{
		"redis": map[string]any{"addr": "localhost:6379", "db": 2},
	})

	section := cfg.GetSection("redis")
	assert.Equal(t, "localhost:6379", section.Get("addr"))

	opts, err := Load[redisOptions](cfg, "redis")
	require.NoError(t, err)
	assert.Equal(t, redisOptions{Addr: "localhost:6379", DB: 2}, opts)

	_, err = Load[redisOptions](cfg, "database")
	assert.Error(t, err)

	def, err := LoadOrDefault(cfg, "database", redisOptions{Addr: "default"})
	require.NoError(t, err)
	assert.Equal(t, "default", def.Addr)
}

func TestGetAllReturnsCopy(t *testing.T) {
	src := map[string]any{"web": map[string]any{"port": 1}}
	cfg := New(src)

	all := cfg.GetAll()
	all["web"].(map[string]any)["port"] = 2
	src["web"].(map[string]any)["port"] = 3

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 1, port)
}

type fakeKV struct {
	kvs []*mvccpb.KeyValue
}

func (f fakeKV) Get(_ context.Context, _ string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	return &clientv3.GetResponse{Kvs: f.kvs}, nil
}

func TestEtcdSource(t *testing.T) {
	src := &EtcdSource{
		Options: EtcdOptions{Prefix: "/bean"},
		Client: fakeKV{kvs: []*mvccpb.KeyValue{
			{Key: []byte("/bean/web/port"), Value: []byte("8081")},
			{Key: []byte("/bean/redis"), Value: []byte(`{"addr": "redis:6379"}`)},
			{Key: []byte("/bean/aspects/logging/pointcut"), Value: []byte("name:Get*")},
		}},
	}

	cfg, err := NewConfigurationBuilder().Add(src).Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("web:port")
	require.NoError(t, err)
	assert.Equal(t, 8081, port)
	assert.Equal(t, "redis:6379", cfg.Get("redis:addr"))
	assert.Equal(t, "name:Get*", cfg.Get("aspects:logging:pointcut"))
}
