package risk

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the scoring thresholds for the risk engine. All percentage
// thresholds compare against portfolio value; volatility thresholds are
// trailing 30-day volatility percentages.
type Config struct {
	// Position-size factor (0-30).
	PositionPctSevere   float64 `yaml:"position_pct_severe"`   // >30% -> 30
	PositionPctHigh     float64 `yaml:"position_pct_high"`     // >20% -> 25
	PositionPctElevated float64 `yaml:"position_pct_elevated"` // >10% -> 15
	PositionPctMinor    float64 `yaml:"position_pct_minor"`    // >5%  -> 5

	// Concentration factor (0-25).
	ConcentrationPctSevere   float64 `yaml:"concentration_pct_severe"`   // >40% -> 25
	ConcentrationPctHigh     float64 `yaml:"concentration_pct_high"`     // >30% -> 20
	ConcentrationPctElevated float64 `yaml:"concentration_pct_elevated"` // >20% -> 10

	// Sector exposure factor (0-20).
	SectorPctSevere   float64 `yaml:"sector_pct_severe"`   // >50% -> 20
	SectorPctHigh     float64 `yaml:"sector_pct_high"`     // >40% -> 15
	SectorPctElevated float64 `yaml:"sector_pct_elevated"` // >30% -> 10

	// Volatility factor (0-15).
	VolatilitySevere   float64 `yaml:"volatility_severe"`   // >50 -> 15
	VolatilityHigh     float64 `yaml:"volatility_high"`     // >30 -> 10
	VolatilityElevated float64 `yaml:"volatility_elevated"` // >20 -> 5

	// Liquidity factor (0-10): trade value as a fraction of daily value.
	LiquidityRatioSevere   float64 `yaml:"liquidity_ratio_severe"`   // >0.20 -> 10
	LiquidityRatioHigh     float64 `yaml:"liquidity_ratio_high"`     // >0.10 -> 7
	LiquidityRatioElevated float64 `yaml:"liquidity_ratio_elevated"` // >0.05 -> 4

	// OversightValueThreshold is the trade value (cents) above which the
	// assessment flags oversight regardless of score.
	OversightValueThreshold int64 `yaml:"oversight_value_threshold"`

	// OversightScoreThreshold flags oversight when the total score exceeds it.
	OversightScoreThreshold int `yaml:"oversight_score_threshold"`

	// VolatilityLookbackDays is the trailing window for volatility lookups.
	VolatilityLookbackDays int `yaml:"volatility_lookback_days"`
}

// DefaultConfig returns the standard scoring thresholds.
func DefaultConfig() Config {
	return Config{
		PositionPctSevere:   30,
		PositionPctHigh:     20,
		PositionPctElevated: 10,
		PositionPctMinor:    5,

		ConcentrationPctSevere:   40,
		ConcentrationPctHigh:     30,
		ConcentrationPctElevated: 20,

		SectorPctSevere:   50,
		SectorPctHigh:     40,
		SectorPctElevated: 30,

		VolatilitySevere:   50,
		VolatilityHigh:     30,
		VolatilityElevated: 20,

		LiquidityRatioSevere:   0.20,
		LiquidityRatioHigh:     0.10,
		LiquidityRatioElevated: 0.05,

		OversightValueThreshold: 5_000_000, // $50,000
		OversightScoreThreshold: 60,
		VolatilityLookbackDays:  30,
	}
}

// LoadConfig reads threshold overrides from a YAML file. An empty path
// returns the defaults; a missing or unreadable file is an error so a
// misconfigured deployment fails loudly rather than trading on the
// wrong thresholds.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
