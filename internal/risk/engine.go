// Package risk scores candidate trades against portfolio state. Evaluation
// is a pure function of its input; all market data is resolved by the
// caller so scores are deterministic under test.
package risk

import "fmt"

// Level is the overall risk band of an assessment.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Factor is one triggered scoring factor with its human-readable message.
type Factor struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Message string `json:"message"`
}

// Assessment is the result of scoring one candidate trade. Ephemeral;
// embedded into an approval request when oversight triggers.
type Assessment struct {
	Score             int      `json:"score"`
	Level             Level    `json:"level"`
	Factors           []Factor `json:"factors"`
	Recommendation    string   `json:"recommendation"`
	OversightRequired bool     `json:"oversight_required"`
}

// Input carries everything the engine needs to score a trade. Monetary
// values are int64 cents and describe the portfolio before the trade.
type Input struct {
	TradeValue          int64
	PortfolioValue      int64   // total value including cash
	ExistingSymbolValue int64   // market value of the existing position in the symbol
	SectorValue         int64   // market value of existing positions in the symbol's sector
	Volatility          float64 // trailing 30d volatility, percent
	AvgDailyValue       int64   // typical daily traded value of the symbol
}

// Sub-score ceilings. Each factor is individually capped so the sum can
// never exceed 100 even under compounding extremes.
const (
	maxPositionScore      = 30
	maxConcentrationScore = 25
	maxSectorScore        = 20
	maxVolatilityScore    = 15
	maxLiquidityScore     = 10
)

// Reporting thresholds: factors scoring above these are surfaced with a
// message; sub-threshold factors are computed but not reported.
const (
	reportPositionAbove      = 20
	reportConcentrationAbove = 15
	reportSectorAbove        = 10
	reportVolatilityAbove    = 10
	reportLiquidityAbove     = 5
)

// Evaluate scores a candidate trade.
func Evaluate(in Input, cfg Config) Assessment {
	var a Assessment

	posScore, posPct := positionSizeScore(in, cfg)
	a.Score += posScore
	if posScore > reportPositionAbove {
		a.Factors = append(a.Factors, Factor{
			Name:    "position_size",
			Score:   posScore,
			Message: fmt.Sprintf("trade is %.1f%% of portfolio value", posPct),
		})
	}

	concScore, concPct := concentrationScore(in, cfg)
	a.Score += concScore
	if concScore > reportConcentrationAbove {
		a.Factors = append(a.Factors, Factor{
			Name:    "concentration",
			Score:   concScore,
			Message: fmt.Sprintf("post-trade symbol exposure is %.1f%% of portfolio value", concPct),
		})
	}

	secScore, secPct := sectorScore(in, cfg)
	a.Score += secScore
	if secScore > reportSectorAbove {
		a.Factors = append(a.Factors, Factor{
			Name:    "sector_exposure",
			Score:   secScore,
			Message: fmt.Sprintf("post-trade sector exposure is %.1f%% of portfolio value", secPct),
		})
	}

	volScore := volatilityScore(in.Volatility, cfg)
	a.Score += volScore
	if volScore > reportVolatilityAbove {
		a.Factors = append(a.Factors, Factor{
			Name:    "volatility",
			Score:   volScore,
			Message: fmt.Sprintf("30-day volatility is %.1f%%", in.Volatility),
		})
	}

	liqScore, liqRatio := liquidityScore(in, cfg)
	a.Score += liqScore
	if liqScore > reportLiquidityAbove {
		a.Factors = append(a.Factors, Factor{
			Name:    "liquidity",
			Score:   liqScore,
			Message: fmt.Sprintf("trade is %.1f%% of typical daily traded value", liqRatio*100),
		})
	}

	a.Level = levelForScore(a.Score)
	a.Recommendation = recommendationForScore(a.Score)
	a.OversightRequired = a.Score > cfg.OversightScoreThreshold || in.TradeValue > cfg.OversightValueThreshold

	return a
}

// positionSizeScore scores the trade relative to total portfolio value.
// An empty portfolio scores the maximum with percent reported as 100.
func positionSizeScore(in Input, cfg Config) (int, float64) {
	if in.PortfolioValue <= 0 {
		return maxPositionScore, 100
	}
	pct := float64(in.TradeValue) / float64(in.PortfolioValue) * 100
	switch {
	case pct > cfg.PositionPctSevere:
		return maxPositionScore, pct
	case pct > cfg.PositionPctHigh:
		return 25, pct
	case pct > cfg.PositionPctElevated:
		return 15, pct
	case pct > cfg.PositionPctMinor:
		return 5, pct
	}
	return 0, pct
}

// concentrationScore scores projected post-trade exposure to the symbol.
func concentrationScore(in Input, cfg Config) (int, float64) {
	if in.PortfolioValue <= 0 {
		return maxConcentrationScore, 100
	}
	projected := in.ExistingSymbolValue + in.TradeValue
	pct := float64(projected) / float64(in.PortfolioValue) * 100
	switch {
	case pct > cfg.ConcentrationPctSevere:
		return maxConcentrationScore, pct
	case pct > cfg.ConcentrationPctHigh:
		return 20, pct
	case pct > cfg.ConcentrationPctElevated:
		return 10, pct
	}
	return 0, pct
}

// sectorScore scores projected post-trade exposure to the symbol's sector.
func sectorScore(in Input, cfg Config) (int, float64) {
	if in.PortfolioValue <= 0 {
		return maxSectorScore, 100
	}
	projected := in.SectorValue + in.TradeValue
	pct := float64(projected) / float64(in.PortfolioValue) * 100
	switch {
	case pct > cfg.SectorPctSevere:
		return maxSectorScore, pct
	case pct > cfg.SectorPctHigh:
		return 15, pct
	case pct > cfg.SectorPctElevated:
		return 10, pct
	}
	return 0, pct
}

func volatilityScore(vol float64, cfg Config) int {
	switch {
	case vol > cfg.VolatilitySevere:
		return maxVolatilityScore
	case vol > cfg.VolatilityHigh:
		return 10
	case vol > cfg.VolatilityElevated:
		return 5
	}
	return 0
}

// liquidityScore scores trade size relative to the symbol's typical daily
// traded value. An unknown daily value scores the maximum.
func liquidityScore(in Input, cfg Config) (int, float64) {
	if in.AvgDailyValue <= 0 {
		return maxLiquidityScore, 1
	}
	ratio := float64(in.TradeValue) / float64(in.AvgDailyValue)
	switch {
	case ratio > cfg.LiquidityRatioSevere:
		return maxLiquidityScore, ratio
	case ratio > cfg.LiquidityRatioHigh:
		return 7, ratio
	case ratio > cfg.LiquidityRatioElevated:
		return 4, ratio
	}
	return 0, ratio
}

func levelForScore(score int) Level {
	switch {
	case score >= 70:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	}
	return LevelLow
}

func recommendationForScore(score int) string {
	switch {
	case score >= 70:
		return "Critical risk: do not execute without explicit human approval"
	case score >= 50:
		return "High risk: human review strongly recommended before execution"
	case score >= 30:
		return "Medium risk: proceed with caution and monitor the position"
	}
	return "Low risk: acceptable for automated execution"
}
