package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultUsesLocalBackend(t *testing.T) {
	cfg := Default()
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Equal(t, ".snapbase", cfg.Storage.Local.Path)
	require.Equal(t, "{source}_{format}_{seq}", cfg.Snapshot.DefaultNamePattern)
}

func TestLoadMergesWorkspaceLocalDocument(t *testing.T) {
	dir := t.TempDir()
	doc := `
storage:
  backend: s3
  s3:
    bucket: my-bucket
    region: us-west-2
snapshot:
  default_name_pattern: "{source}_{seq}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapbase.yaml"), []byte(doc), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.Storage.Backend)
	require.Equal(t, "my-bucket", cfg.Storage.S3.Bucket)
	require.Equal(t, "us-west-2", cfg.Storage.S3.Region)
	require.Equal(t, "{source}_{seq}", cfg.Snapshot.DefaultNamePattern)
}

func TestLoadWithoutDocumentReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadAppliesEnvOverridesLast(t *testing.T) {
	dir := t.TempDir()
	doc := "storage:\n  backend: s3\n  s3:\n    bucket: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapbase.yaml"), []byte(doc), 0o644))

	os.Setenv("SNAPBASE_S3_BUCKET", "from-env")
	defer os.Unsetenv("SNAPBASE_S3_BUCKET")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Storage.S3.Bucket)
}

func TestLoadWithSnapbaseConfigEnvOverridesWorkspaceLocal(t *testing.T) {
	dir := t.TempDir()
	workspaceDoc := "storage:\n  backend: local\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapbase.yaml"), []byte(workspaceDoc), 0o644))

	override := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(override, []byte("storage:\n  backend: s3\n"), 0o644))

	os.Setenv("SNAPBASE_CONFIG", override)
	defer os.Unsetenv("SNAPBASE_CONFIG")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.Storage.Backend)
}

func TestResolvePasswordReadsFromEnv(t *testing.T) {
	os.Setenv("SNAPBASE_TEST_DB_PASSWORD", "secret")
	defer os.Unsetenv("SNAPBASE_TEST_DB_PASSWORD")

	db := DatabaseConfig{PasswordEnv: "SNAPBASE_TEST_DB_PASSWORD"}
	require.Equal(t, "secret", db.ResolvePassword())

	require.Equal(t, "", DatabaseConfig{}.ResolvePassword())
}

func TestToStorageConfigLayersDocumentOverEnv(t *testing.T) {
	cfg := Default()
	cfg.Storage.S3.Bucket = "doc-bucket"
	cfg.Storage.S3.Region = "eu-west-1"

	sc := cfg.ToStorageConfig()
	require.Equal(t, "doc-bucket", sc.Bucket)
	require.Equal(t, "eu-west-1", sc.Region)
}
