package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
)

func openTestPosition(t *testing.T, ticker string) *domain.Position {
	t.Helper()
	p, err := domain.NewPosition(ticker, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10,
		domain.Sizing{Shares: 10, StopPrice: 9, TargetPrice: 12, RiskPerShare: 1}, decimal.NewFromInt(1))
	require.NoError(t, err)
	return p
}

func TestPortfolioOpenClose(t *testing.T) {
	pf := NewPortfolio(decimal.NewFromInt(1000))
	p := openTestPosition(t, "AAA")

	require.NoError(t, pf.Open(p))
	assert.True(t, pf.Cash.Equal(decimal.NewFromInt(899)))
	assert.True(t, pf.HasOpen("AAA"))

	err := pf.Open(openTestPosition(t, "AAA"))
	assert.ErrorIs(t, err, ErrDuplicateOpenPosition)

	require.NoError(t, p.MarkToMarket(11))
	pf.Revalue()
	assert.True(t, pf.Market.Equal(decimal.NewFromInt(110)))
	assert.True(t, pf.Total.Equal(pf.Cash.Add(pf.Market)))

	require.NoError(t, pf.Close(p, 12, p.OpenDate.AddDate(0, 0, 1), domain.CloseTarget))
	pf.Revalue()
	assert.True(t, pf.Cash.Equal(decimal.NewFromInt(1018)))
	assert.True(t, pf.Market.IsZero())
	assert.False(t, pf.HasOpen("AAA"))
	assert.Empty(t, pf.OpenPositions())
	assert.Len(t, pf.Positions(), 1)

	// The ticker can be reopened once the first position is closed.
	require.NoError(t, pf.Open(openTestPosition(t, "AAA")))
	assert.Len(t, pf.OpenPositions(), 1)

	pt := pf.Point(p.OpenDate)
	assert.True(t, pt.Total.Equal(pf.Total))
}
