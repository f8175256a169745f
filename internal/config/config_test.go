package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfigFile(t *testing.T, contents string) func() {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cantina.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))

	return func() { require.NoError(t, os.Chdir(wd)) }
}

func TestLoadFailsValidationWithoutRequiredSecrets(t *testing.T) {
	restore := writeConfigFile(t, "service_name: cantinaos\n")
	defer restore()

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSucceedsWithSecretsAndAppliesDefaults(t *testing.T) {
	restore := writeConfigFile(t, `
stt_api_key: stt-key
llm_api_key: llm-key
tts_api_key: tts-key
`)
	defer restore()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "cantinaos", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 80, cfg.MusicNormalVolume)
	assert.Equal(t, 20, cfg.MusicDuckingVolume)
	assert.True(t, cfg.LLMResetOnTurn)
}

func TestLoggingConfigTranslatesLevelAndPath(t *testing.T) {
	cfg := &AppConfig{LogLevel: "debug", SessionLogDir: "/tmp/cantina-logs"}
	logCfg, err := cfg.LoggingConfig()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, logCfg.Level)
	assert.Equal(t, "/tmp/cantina-logs", logCfg.SessionFilePath)
}

func TestLoggingConfigRejectsUnknownLevel(t *testing.T) {
	cfg := &AppConfig{LogLevel: "not-a-level"}
	_, err := cfg.LoggingConfig()
	assert.Error(t, err)
}

func TestWebConfigTranslatesSecondsToDuration(t *testing.T) {
	cfg := &AppConfig{WebAddr: ":9000", WebStatusBroadcastSeconds: 45}
	webCfg := cfg.WebConfig()
	assert.Equal(t, ":9000", webCfg.Addr)
	assert.Equal(t, 45*time.Second, webCfg.StatusBroadcastCeiling)
}

func TestDebugConfigCopiesPerformanceThresholds(t *testing.T) {
	cfg := &AppConfig{PerformanceThresholds: map[string]float64{"llm.turn": 1500}}
	debugCfg := cfg.DebugConfig()
	assert.Equal(t, 1500.0, debugCfg.PerformanceThresholds["llm.turn"])
}
