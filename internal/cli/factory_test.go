package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/pkg/adapters/remote"
	"github.com/aretw0/triage/pkg/domain"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = driver
	cfg.Store.Path = t.TempDir()
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_Drivers(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := map[string]func(*config.Config){
		config.DriverMemory: nil,
		config.DriverFile:   nil,
		config.DriverBolt:   nil,
		config.DriverRedis: func(c *config.Config) {
			c.Store.URL = mr.Addr()
			c.Store.Lock = true
		},
	}
	for driver, tweak := range cases {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			if tweak != nil {
				tweak(cfg)
			}
			app := newTestApp(t, cfg)
			_, ok := app.Remote.(*remote.Mock)
			assert.True(t, ok, "empty remote url should select the mock")

			ctx := context.Background()
			s, err := app.Wizard.Start(ctx, domain.VariantPlain)
			require.NoError(t, err)
			loaded, err := app.Wizard.Session(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.CurrentStepID, loaded.CurrentStepID)
		})
	}
}

func TestNewApp_BoltFile(t *testing.T) {
	cfg := testConfig(t, config.DriverBolt)
	app := newTestApp(t, cfg)
	_, err := app.Wizard.Start(context.Background(), domain.VariantPlain)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Store.Path, "triage.db"))
	assert.NoError(t, err)
}

func TestNewApp_EncryptsAtRest(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	cfg.Security.EncryptionKey = testKey
	app := newTestApp(t, cfg)

	ctx := context.Background()
	s, err := app.Wizard.Start(ctx, domain.VariantPlain)
	require.NoError(t, err)
	_, err = app.Wizard.Advance(ctx, s.ID, "English")
	require.NoError(t, err)
	_, err = app.Wizard.Advance(ctx, s.ID, "Jane Doe")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(cfg.Store.Path, "store"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(cfg.Store.Path, "store", e.Name()))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "Jane Doe")
	}

	// A second app with the same key reads the session back.
	again := newTestApp(t, cfg)
	loaded, err := again.Wizard.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", loaded.Answers[domain.KeyFullName])
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("bad key", func(t *testing.T) {
		cfg := testConfig(t, config.DriverMemory)
		cfg.Security.EncryptionKey = "short"
		_, err := NewApp(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "encryption key")
	})
	t.Run("bad pii pattern", func(t *testing.T) {
		cfg := testConfig(t, config.DriverMemory)
		cfg.Security.PIIFields = []string{"("}
		_, err := NewApp(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "invalid PII pattern")
	})
	t.Run("pii over sessions", func(t *testing.T) {
		cfg := testConfig(t, config.DriverMemory)
		cfg.Security.PIIFields = []string{"^fullName$"}
		cfg.Security.PIIScopes = []string{domain.StorePrefixSession}
		_, err := NewApp(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "covers session documents")
	})
	t.Run("missing flow file", func(t *testing.T) {
		cfg := testConfig(t, config.DriverMemory)
		cfg.Flow.Definition = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := NewApp(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "failed to read flow definition")
	})
	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t, "etcd")
		_, err := NewApp(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, `unknown store driver "etcd"`)
	})
}

func TestNewApp_RemoteClient(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	cfg.Remote.URL = "http://triage.invalid/"
	app := newTestApp(t, cfg)
	_, ok := app.Remote.(*remote.Client)
	assert.True(t, ok)
}

func TestNewLogger(t *testing.T) {
	var sb strings.Builder
	logger := NewLogger(&sb, config.LogConfig{Level: "debug", Format: "json"})
	logger.Debug("hello", "error", "boom")
	assert.Contains(t, sb.String(), `"err":"boom"`)
}
