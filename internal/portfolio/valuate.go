package portfolio

import (
	"github.com/shopspring/decimal"

	"trading-backtest/internal/model"
)

// Valuate marks the portfolio to the bar's close.
func Valuate(bar model.Bar, pos model.Position, cash decimal.Decimal) model.PortfolioSnapshot {
	side := pos.Side
	if pos.IsFlat() {
		side = model.SideFlat
	}
	return model.PortfolioSnapshot{
		Date:  bar.Date,
		Value: cash.Add(pos.MarkToMarket(bar.Close)),
		Price: bar.Close,
		Side:  side,
	}
}
