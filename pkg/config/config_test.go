package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
consumer:
  kind: count
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.True(t, cfg.Decode.StrictFrameLength)
	assert.Equal(t, 0, cfg.Decode.IDSizeOverride)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 10, cfg.Database.MaxConns)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
decode:
  id_size_override: 4
  strict_frame_length: false
consumer:
  kind: columnar
  class_filter: business
database:
  type: postgres
  host: db.example.com
  port: 5432
  database: heapdumps
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Decode.IDSizeOverride)
	assert.False(t, cfg.Decode.StrictFrameLength)
	assert.Equal(t, "columnar", cfg.Consumer.Kind)
	assert.Equal(t, "business", cfg.Consumer.ClassFilter)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "heapdumps", cfg.Database.Database)
}

func TestLoad_InvalidConsumerKind(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
consumer:
  kind: bogus
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported consumer kind")
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
consumer:
  kind: columnar
database:
  type: oracle
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
consumer:
  kind: count
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_UnsupportedConsumerKind(t *testing.T) {
	cfg := &Config{Consumer: ConsumerConfig{Kind: "nope"}}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported consumer kind")
}

func TestValidate_UnsupportedDatabaseTypeOnlyMattersForColumnar(t *testing.T) {
	cfg := &Config{
		Consumer: ConsumerConfig{Kind: "count"},
		Database: DatabaseConfig{Type: "oracle"},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Consumer.Kind = "columnar"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "count", cfg.Consumer.Kind)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
consumer:
  kind: print
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "print", cfg.Consumer.Kind)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}
