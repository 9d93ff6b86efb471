package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"twitapp/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test_jwt_secret")
	t.Setenv("SECRET_KEY", "test_secret_key")
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
	for name := range flagKeys {
		assert.Contains(t, output, "--"+name)
	}
}

func TestMigrateCommand_SQLite(t *testing.T) {
	setSecrets(t)
	dsn := filepath.Join(t.TempDir(), "twitapp.db")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"migrate", "--store", "sqlite", "--dsn", dsn})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Migrations completed successfully")
	assert.FileExists(t, dsn)
}

func TestMigrateCommand_MemoryStoreHasNothingToMigrate(t *testing.T) {
	setSecrets(t)

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "--store", "memory"})

	assert.Error(t, cmd.Execute())
}

func TestServeCommand_RequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SECRET_KEY", "")

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve"})

	assert.Error(t, cmd.Execute())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	setSecrets(t)
	t.Setenv("STORE_DRIVER", "mongo")

	v := config.New()
	cmd := NewRootCmd()
	flags := cmd.PersistentFlags()
	require.NoError(t, bindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--store", "sqlite", "--token-ttl", "90m", "--port", ":9090"}))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, ":9090", cfg.AppPort)
}

func TestRunServe_ShutsDownOnCancel(t *testing.T) {
	setSecrets(t)
	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
