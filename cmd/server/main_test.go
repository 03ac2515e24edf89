package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log:
  level: error
database:
  driver: sqlite
  dbname: ":memory:"
lark:
  app_id: cli_test
  app_secret: secret
  encrypt_key: cli-key
  assistant_user_id: u-bot
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncryptDecrypt(t *testing.T) {
	path := writeConfig(t)
	plain := `{"type":"url_verification","challenge":"ch-1"}`

	encoded, err := run(t, "--config", path, "encrypt", plain)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := run(t, "--config", path, "decrypt", encoded)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)
}

func TestEncryptInvalidJSON(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "encrypt", "{")
	assert.Error(t, err)
}

func TestDecryptMalformed(t *testing.T) {
	_, err := run(t, "--config", writeConfig(t), "decrypt", "not-base64!")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	path := writeConfig(t)
	cfg, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg = append(cfg, []byte("leader:\n  backend: port\n  host: 127.0.0.1\n  port: 0\n")...)
	require.NoError(t, os.WriteFile(path, cfg, 0o644))

	_, err = run(t, "--config", path, "migrate")
	assert.NoError(t, err)
}
