package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRead(t *testing.T) {
	path := writeEnv(t, `APP_NAME=demo
DB_HOST=db.internal
DB_PORT=3307
DB_DATABASE=appdb
DB_USERNAME=app
DB_PASSWORD=s3cret
`)

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "3307", cfg.Port)
	assert.Equal(t, "appdb", cfg.Database)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "s3cret", cfg.Password)
}

func TestRead_DefaultPort(t *testing.T) {
	path := writeEnv(t, "DB_HOST=localhost\nDB_DATABASE=appdb\nDB_USERNAME=app\n")

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestRead_EmptyPassword(t *testing.T) {
	path := writeEnv(t, "DB_HOST=localhost\nDB_DATABASE=appdb\nDB_USERNAME=app\nDB_PASSWORD=\n")

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Password)
}

func TestRead_PasswordWithEquals(t *testing.T) {
	path := writeEnv(t, "DB_HOST=localhost\nDB_PASSWORD=a=b=c\n")

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "a=b=c", cfg.Password)
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), ".env"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "/srv/app/.env", DefaultPath("/srv/app"))
}
