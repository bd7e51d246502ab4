package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, []ast.Operation{ast.Query, ast.Mutation, ast.Subscription}, cfg.Execution.OperationKinds())
	assert.Equal(t, int64(1000), cfg.Cache.DocumentCacheSize)
	assert.Equal(t, "memory", cfg.PersistedOperations.Storage)
	assert.Equal(t, "sha256", cfg.PersistedOperations.HashAlgorithm)
	assert.Equal(t, []string{"first", "last", "limit"}, cfg.Complexity.MultiplierArguments)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("EXECUTION_TIMEOUT", "5s")
	t.Setenv("EXECUTION_ALLOWED_OPERATIONS", "query")
	t.Setenv("PERSISTED_OPERATIONS_ENABLED", "true")
	t.Setenv("PERSISTED_OPERATIONS_STORAGE", "fs")
	t.Setenv("PERSISTED_OPERATIONS_PATH", "/tmp/ops")
	t.Setenv("VALIDATION_CYCLE_MAXIMA", "User.friends:2,Post.author:1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, []ast.Operation{ast.Query}, cfg.Execution.OperationKinds())
	assert.Equal(t, "/tmp/ops", cfg.PersistedOperations.Path)
	assert.Equal(t, map[string]int{"User.friends": 2, "Post.author": 1}, cfg.Validation.CycleMaxima)
}

func TestLoadFileExpandsEnvironment(t *testing.T) {
	t.Setenv("GRAPHCORE_TEST_REDIS", "redis://localhost:6379/0")
	path := writeFile(t, `
server:
  addr: ":7000"
  cors_origins: ["https://example.com"]
schema:
  path: schema.graphql
execution:
  timeout: 2s
  introspection: true
persisted_operations:
  enabled: true
  storage: redis
  redis_url: ${GRAPHCORE_TEST_REDIS}
  only_persisted: true
complexity:
  enabled: true
  max_depth: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "schema.graphql", cfg.Schema.Path)
	assert.Equal(t, 2*time.Second, cfg.Execution.Timeout)
	assert.True(t, cfg.Execution.Introspection)
	assert.Equal(t, "redis", cfg.PersistedOperations.Storage)
	assert.Equal(t, "redis://localhost:6379/0", cfg.PersistedOperations.RedisURL)
	assert.True(t, cfg.PersistedOperations.OnlyPersisted)
	assert.True(t, cfg.Complexity.Enabled)
	assert.Equal(t, 7, cfg.Complexity.MaxDepth)
	assert.Equal(t, 1, cfg.Complexity.DefaultFieldCost)
	// untouched sections keep their defaults
	assert.Equal(t, int64(1000), cfg.Cache.OperationCacheSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateAggregatesErrors(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ""
execution:
  allowed_operations: [query, upload]
persisted_operations:
  enabled: true
  storage: fs
  hash_algorithm: md5
log:
  level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server.addr must not be empty")
	assert.Contains(t, msg, `unknown operation kind "upload"`)
	assert.Contains(t, msg, "persisted_operations.path is required")
	assert.Contains(t, msg, "persisted_operations.hash_algorithm")
	assert.Contains(t, msg, "log.level")
}
