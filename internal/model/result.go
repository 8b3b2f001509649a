package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the mark-to-market portfolio value after one bar.
type PortfolioSnapshot struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
	Price float64         `json:"price"` // underlying close
	Side  Side            `json:"side"`
}

// Stats holds trade and curve statistics for a finished run.
type Stats struct {
	NumTrades      int     `json:"num_trades"` // closed round trips
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRatePct     float64 `json:"win_rate_pct"`
	AvgReturnPct   float64 `json:"avg_return_pct"`
	MaxReturnPct   float64 `json:"max_return_pct"`
	MinReturnPct   float64 `json:"min_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	ProfitFactor   float64 `json:"profit_factor"` // 0 when there are no losing trades
}

// BacktestResult is the immutable output of one (series, strategy, params) run.
type BacktestResult struct {
	RunID            string              `json:"run_id"`
	Symbol           string              `json:"symbol"`
	Strategy         string              `json:"strategy"`
	Params           map[string]float64  `json:"params"`
	StartDate        time.Time           `json:"start_date"`
	EndDate          time.Time           `json:"end_date"`
	InitialCapital   decimal.Decimal     `json:"initial_capital"`
	FinalCapital     decimal.Decimal     `json:"final_capital"`
	TotalReturnPct   float64             `json:"total_return_pct"`
	BuyHoldReturnPct float64             `json:"buy_hold_return_pct"`
	Trades           []TradeEvent        `json:"trades"`
	Curve            []PortfolioSnapshot `json:"curve"`
	Stats            Stats               `json:"stats"`
}

// Summary is the flat record of a run used by result tables.
type Summary struct {
	RunID            string  `json:"run_id" csv:"run_id"`
	Symbol           string  `json:"symbol" csv:"symbol"`
	Strategy         string  `json:"strategy" csv:"strategy"`
	InitialCapital   float64 `json:"initial_capital" csv:"initial_capital"`
	FinalCapital     float64 `json:"final_capital" csv:"final_capital"`
	TotalReturnPct   float64 `json:"total_return_pct" csv:"total_return_pct"`
	NumTrades        int     `json:"num_trades" csv:"num_trades"`
	WinRatePct       float64 `json:"win_rate_pct" csv:"win_rate_pct"`
	AvgReturnPct     float64 `json:"avg_return_pct" csv:"avg_return_pct"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct" csv:"max_drawdown_pct"`
	BuyHoldReturnPct float64 `json:"buy_hold_return_pct" csv:"buy_hold_return_pct"`
}

// Summary flattens the result into its summary record.
func (r *BacktestResult) Summary() Summary {
	return Summary{
		RunID:            r.RunID,
		Symbol:           r.Symbol,
		Strategy:         r.Strategy,
		InitialCapital:   r.InitialCapital.InexactFloat64(),
		FinalCapital:     r.FinalCapital.InexactFloat64(),
		TotalReturnPct:   r.TotalReturnPct,
		NumTrades:        r.Stats.NumTrades,
		WinRatePct:       r.Stats.WinRatePct,
		AvgReturnPct:     r.Stats.AvgReturnPct,
		MaxDrawdownPct:   r.Stats.MaxDrawdownPct,
		BuyHoldReturnPct: r.BuyHoldReturnPct,
	}
}

// JSON returns the JSON-encoded summary record.
func (s *Summary) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Ranking is one entry of a per-strategy leaderboard.
type Ranking struct {
	RunID          string  `json:"run_id"`
	TotalReturnPct float64 `json:"total_return_pct"`
}
