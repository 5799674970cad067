package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"swingtrader/internal/series/seriestest"
	"swingtrader/internal/strategy"
)

func breakoutParams() Params {
	p := DefaultParams()
	p.Window = 20
	p.VolumeMargin = 1.5
	return p
}

func TestBreakoutSignal(t *testing.T) {
	b := seriestest.NewBuilder("AAA").
		Repeat(60, 100, 101, 99, 100, 1000).
		Add(100.5, 102, 100, 101, 2000)
	s := b.Build()
	rule := NewBreakout(breakoutParams())

	assert.True(t, rule.Signal(s, b.Date(60)))
	assert.False(t, rule.Signal(s, b.Date(59)), "flat day has no volume surge")
}

func TestBreakoutRejectsWeakVolume(t *testing.T) {
	b := seriestest.NewBuilder("AAA").
		Repeat(60, 100, 101, 99, 100, 1000).
		Add(100.5, 102, 100, 101, 1400)

	assert.False(t, NewBreakout(breakoutParams()).Signal(b.Build(), b.Date(60)))
}

func TestBreakoutRejectsOverbought(t *testing.T) {
	// Close at the top of the 14-day range puts %K at 100.
	b := seriestest.NewBuilder("AAA").
		Repeat(60, 100, 101, 99, 100, 1000).
		Add(100.5, 102, 100, 102, 2000)

	assert.False(t, NewBreakout(breakoutParams()).Signal(b.Build(), b.Date(60)))
}

func TestBreakoutShortHistoryIsNoSignal(t *testing.T) {
	b := seriestest.NewBuilder("AAA").
		Repeat(10, 100, 101, 99, 100, 1000).
		Add(100.5, 102, 100, 101, 2000)

	assert.False(t, NewBreakout(breakoutParams()).Signal(b.Build(), b.Date(10)))
	assert.False(t, NewBreakout(breakoutParams()).Signal(b.Build(), seriestest.Start.AddDate(1, 0, 0)))
}

func TestMACDTrend(t *testing.T) {
	// Flat, then a climb: MACD pulls away from its signal line.
	b := seriestest.NewBuilder("R").Repeat(60, 100, 101, 99, 100, 1000)
	for i := 1; i <= 20; i++ {
		b.Closes(1000, float64(100+i))
	}
	rule := NewMACDTrend(12, 26, 9, 50)

	assert.True(t, rule.Signal(b.Build(), b.Date(79)))
	assert.False(t, rule.Signal(b.Build(), b.Date(30)), "inside the warm-up")
	assert.Equal(t, 52, rule.Lookback())

	down := seriestest.NewBuilder("D").Repeat(60, 100, 101, 99, 100, 1000)
	for i := 1; i <= 20; i++ {
		down.Closes(1000, float64(100-i))
	}
	assert.False(t, rule.Signal(down.Build(), down.Date(79)))
}

func TestSMACross(t *testing.T) {
	b := seriestest.NewBuilder("X").
		Closes(1, 10, 10, 10, 10, 10).
		Closes(1, 20)
	rule := NewSMACross(2, 4)

	assert.True(t, rule.Signal(b.Build(), b.Date(5)))
	assert.False(t, rule.Signal(b.Build(), b.Date(4)))
}

func TestRegister(t *testing.T) {
	r := strategy.NewRegistry()
	Register(r, DefaultParams())

	assert.Equal(t, []string{"breakout", "macd-trend", "sma-cross"}, r.List())
	s, ok := r.Get("breakout")
	assert.True(t, ok)
	assert.Equal(t, 50, s.Lookback())
}
