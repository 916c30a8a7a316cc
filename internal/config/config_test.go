package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CUESO_ADDR", "CUESO_ALLOWED_ORIGINS", "CUESO_PROVIDER",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "CUESO_DEFAULT_MODEL",
		"ROKU_ADDR", "CUESO_MAX_ITERATIONS", "CUESO_REQUEST_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingProviderKeyErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROKU_ADDR", "192.168.1.50")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MissingRokuAddrErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_UnknownProviderErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUESO_PROVIDER", "bedrock")
	t.Setenv("ROKU_ADDR", "192.168.1.50")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_AnthropicDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ROKU_ADDR", "192.168.1.50")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderAnthropic, cfg.Provider)
	require.Equal(t, ":8443", cfg.Addr)
	require.Equal(t, "claude-sonnet-4-5", cfg.DefaultModel)
	require.Equal(t, 10, cfg.DefaultMaxIterations)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_OpenAIDefaultModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("CUESO_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ROKU_ADDR", "192.168.1.50")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", cfg.DefaultModel)
}

func TestLoad_OverridesAndAllowedOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ROKU_ADDR", "192.168.1.50")
	t.Setenv("CUESO_ADDR", ":9000")
	t.Setenv("CUESO_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CUESO_MAX_ITERATIONS", "4")
	t.Setenv("CUESO_REQUEST_TIMEOUT", "2s")
	t.Setenv("CUESO_DEFAULT_MODEL", "claude-opus")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, 4, cfg.DefaultMaxIterations)
	require.Equal(t, 2*time.Second, cfg.RequestTimeout)
	require.Equal(t, "claude-opus", cfg.DefaultModel)
}

func TestLoad_InvalidIntAndDurationFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ROKU_ADDR", "192.168.1.50")
	t.Setenv("CUESO_MAX_ITERATIONS", "not-a-number")
	t.Setenv("CUESO_REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.DefaultMaxIterations)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
}
