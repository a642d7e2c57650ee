package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/investor-cli/internal/config"
	"github.com/sells-group/investor-cli/internal/model"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "investors.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_ValidatesAndMigrates(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "m.db")}}

	st, err := openStore(context.Background(), "migrate")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	firms, err := st.ListFirms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, firms)
}

func TestOpenStore_InvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	_, err := openStore(context.Background(), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestInitGenerator(t *testing.T) {
	cfg = &config.Config{
		Generation: config.GenerationConfig{Provider: "gemini", MaxAttempts: 2},
		Gemini:     config.GeminiConfig{Key: "k", BaseURL: "http://127.0.0.1:1", Model: "gemini-2.0-flash"},
	}
	gen, err := initGenerator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SourceGemini, gen.Source())

	cfg.Generation.Provider = "Anthropic"
	cfg.Anthropic = config.AnthropicConfig{Key: "k", Model: "claude-sonnet-4-5-20250929"}
	gen, err = initGenerator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SourceClaude, gen.Source())

	cfg.Generation.Provider = "openai"
	_, err = initGenerator(context.Background())
	assert.Error(t, err)
}
