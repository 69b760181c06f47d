package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dip-trigger/internal/trigger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, DefaultSymbols, cfg.Trigger.Symbols)
	assert.Equal(t, 200, cfg.Trigger.Window)
	assert.Equal(t, 5.0, cfg.Trigger.MildThreshold)
	assert.Equal(t, 15.0, cfg.Trigger.StrongThreshold)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Storage.MaxStaleness)
	assert.Equal(t, "S&P 500", cfg.Trigger.LabelMap()["^GSPC"])
	assert.Equal(t, "Nifty Midcap 150", cfg.Trigger.LabelMap()["0P0001IAU9.BO"])

	params, err := cfg.Trigger.Params()
	require.NoError(t, err)
	assert.Equal(t, trigger.DefaultParams(), params)
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trigger:
  symbols: [spx, ndx]
  window: 50
  mild_threshold: 4
  strong_threshold: 10
provider:
  aliases:
    DAX: "^GDAXI"
`))
	require.NoError(t, err)

	symbols, err := cfg.Trigger.SymbolList()
	require.NoError(t, err)
	assert.Equal(t, []trigger.Symbol{"SPX", "NDX"}, symbols)
	assert.Equal(t, 50, cfg.Trigger.Window)
	assert.Equal(t, "^GDAXI", cfg.Provider.Aliases["dax"])
	assert.Equal(t, "^GSPC", cfg.Provider.Aliases["spx"])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DIPTRIGGER_TRIGGER_SYMBOLS", "SPX,BTC-USD")
	t.Setenv("DIPTRIGGER_TRIGGER_STRONG_THRESHOLD", "25")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"SPX", "BTC-USD"}, cfg.Trigger.Symbols)
	assert.Equal(t, 25.0, cfg.Trigger.StrongThreshold)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	_, err := Load(writeConfig(t, "trigger:\n  mild_threshold: 5\n  strong_threshold: 3\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, trigger.ErrInvalidConfig)
}

func TestLoadRejectsBlankSymbol(t *testing.T) {
	_, err := Load(writeConfig(t, "trigger:\n  symbols: [SPX, \" \"]\n"))
	require.ErrorIs(t, err, trigger.ErrInvalidConfig)
}

func TestLoadRejectsStructConstraints(t *testing.T) {
	_, err := Load(writeConfig(t, "provider:\n  concurrency: 0\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, trigger.ErrInvalidConfig)

	_, err = Load(writeConfig(t, "allocation:\n  dip_fraction: 1.5\n"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidTriggerSection(t *testing.T) {
	cases := map[string]string{
		"zero window":     "trigger:\n  window: 0\n",
		"negative window": "trigger:\n  window: -5\n",
		"zero mild":       "trigger:\n  mild_threshold: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.ErrorIs(t, err, trigger.ErrInvalidConfig)
		})
	}
}

func TestValidateRejectsEmptySymbolList(t *testing.T) {
	cfg := &Config{Trigger: TriggerConfig{Window: 200, MildThreshold: 5, StrongThreshold: 15}}
	require.ErrorIs(t, cfg.Validate(), trigger.ErrInvalidConfig)
}

func TestLoadRejectsNaNThresholdFromEnv(t *testing.T) {
	t.Setenv("DIPTRIGGER_TRIGGER_MILD_THRESHOLD", "NaN")

	_, err := Load(writeConfig(t, ""))
	require.ErrorIs(t, err, trigger.ErrInvalidConfig)
}

func TestLoadLabelsFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trigger:
  labels:
    - symbol: spx
      name: S&P 500
    - symbol: "RELIANCE.NS"
      name: Reliance
    - symbol: " "
      name: ignored
`))
	require.NoError(t, err)

	labels := cfg.Trigger.LabelMap()
	assert.Equal(t, map[trigger.Symbol]string{"SPX": "S&P 500", "RELIANCE.NS": "Reliance"}, labels)
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 20, cfg.ResolveMaxPoints(20))
}
