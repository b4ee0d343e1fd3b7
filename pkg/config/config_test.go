package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwtSecret: test-secret
audit:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, "data/backoffice.db", cfg.Database.Path)

	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 100, cfg.Audit.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Audit.FlushInterval())
	assert.Equal(t, 10000, cfg.Audit.MaxQueueSize)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention())
	assert.Equal(t, 24*time.Hour, cfg.Audit.CleanupInterval())
	assert.Equal(t, 1000, cfg.Audit.CleanupBatchSize)
	assert.Equal(t, 10*time.Second, cfg.Audit.ShutdownGrace())

	assert.Contains(t, cfg.Audit.ExcludedEntities, "AuditRecord")
	assert.Contains(t, cfg.Audit.ExcludedFields, "passwordHash")
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
server:
  listenAddress: ":9090"
  debug: true
audit:
  enabled: true
  batchSize: 50
  flushIntervalSeconds: 2
  retentionDays: 30
  excludedEntities: []
  excludedFields: []
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.Equal(t, 50, cfg.Audit.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Audit.FlushInterval())
	assert.Equal(t, 30*24*time.Hour, cfg.Audit.Retention())

	// Empty lists are an explicit opt-out, not "use defaults".
	assert.Empty(t, cfg.Audit.ExcludedEntities)
	assert.Empty(t, cfg.Audit.ExcludedFields)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_KafkaMirrorNeedsBrokersAndTopic(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwtSecret: test-secret
audit:
  kafka:
    enabled: true
    topic: audit
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers")

	path = writeConfig(t, `
auth:
  jwtSecret: test-secret
audit:
  kafka:
    enabled: true
    brokers: ["localhost:9092"]
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")
}

func TestValidate_JWTSecretRequiredOutsideDebug(t *testing.T) {
	path := writeConfig(t, `
server:
  debug: false
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwtSecret")

	path = writeConfig(t, `
server:
  debug: true
`)
	_, err = Load(path)
	assert.NoError(t, err)
}
