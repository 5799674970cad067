package series_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingtrader/internal/domain"
	"swingtrader/internal/series"
	"swingtrader/internal/series/seriestest"
)

func TestNewRejectsUnsorted(t *testing.T) {
	d1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := series.New("X", []domain.Bar{{Timestamp: d1}, {Timestamp: d0}})
	assert.ErrorIs(t, err, series.ErrUnsorted)

	_, err = series.New("X", []domain.Bar{{Timestamp: d0}, {Timestamp: d0.Add(3 * time.Hour)}})
	assert.ErrorIs(t, err, series.ErrUnsorted, "same calendar day twice")

	_, err = series.New("X", nil)
	assert.ErrorIs(t, err, series.ErrEmpty)
}

func TestLookupNormalizesToCalendarDay(t *testing.T) {
	ts := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)
	s, err := series.New("X", []domain.Bar{{Timestamp: ts, Close: 10}})
	require.NoError(t, err)

	b, err := s.Bar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 10.0, b.Close)
	assert.True(t, s.Has(ts))

	_, err = s.Bar(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, series.ErrDateNotFound)
}

func TestWindowAndBefore(t *testing.T) {
	b := seriestest.NewBuilder("X").Closes(100, 1, 2, 3, 4, 5)
	s := b.Build()

	w, ok, err := s.Window(b.Date(2), 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, series.Closes(w))

	_, ok, err = s.Window(b.Date(2), 4)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := s.Before(b.Date(4), 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 4}, series.Closes(p))

	_, ok, err = s.Before(b.Date(1), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Available(b.Date(3))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	prefix, err := s.Prefix(b.Date(1))
	require.NoError(t, err)
	assert.Len(t, prefix, 2)
	assert.Len(t, s.Dates(), 5)
	assert.Equal(t, "X", s.Ticker())
}
