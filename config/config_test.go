package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bugstomper.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 300*time.Millisecond, cfg.TagDebounce())
	assert.Equal(t, 2*time.Hour, cfg.DraftTTL())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  addr: ":9000"
tags:
  max_tags: 3
llm:
  provider: openai
  model: gpt-4o-mini
logging:
  level: debug
`)
	t.Setenv("BUGSTOMPER_DB", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("BUGSTOMPER_LLM_API_KEY", "")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Tags.MaxTags)
	assert.Equal(t, 50, cfg.Editor.HistoryLimit, "untouched sections keep defaults")
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BUGSTOMPER_ADDR", ":7000")
	t.Setenv("BUGSTOMPER_DB", "/tmp/x.db")
	t.Setenv("BUGSTOMPER_STORAGE_DIR", "/tmp/objects")
	t.Setenv("BUGSTOMPER_LLM_API_KEY", "sk-own")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/objects", cfg.Storage.Dir)
	assert.Equal(t, "sk-own", cfg.LLM.APIKey)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, `
tags:
  debounce: soon
  max_tags: 0
llm:
  provider: openai
logging:
  level: chatty
`))
	require.Error(t, err)
	for _, want := range []string{"tags.debounce", "tags.max_tags", "llm.model", "logging.level"} {
		assert.ErrorContains(t, err, want)
	}
}
