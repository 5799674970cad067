package report

import (
	"context"
	"log/slog"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"swingtrader/internal/domain"
	"swingtrader/internal/engine"
)

// InfluxWriter is the part of the InfluxDB client the observer needs.
type InfluxWriter interface {
	Write(bp client.BatchPoints) error
}

// DialInflux creates an InfluxDB HTTP client.
func DialInflux(addr, username, password string) (client.Client, error) {
	return client.NewHTTPClient(client.HTTPConfig{
		Addr:     addr,
		Username: username,
		Password: password,
	})
}

// InfluxObserver writes one "equity" point per simulated day and one
// "trades" point per opened or closed position. Write failures are logged
// and never stop the run.
type InfluxObserver struct {
	w        InfluxWriter
	database string
	tags     map[string]string
	log      *slog.Logger
}

// NewInfluxObserver creates an observer writing to database. tags are added
// to every point (typically run_id and strategy).
func NewInfluxObserver(w InfluxWriter, database string, tags map[string]string) *InfluxObserver {
	return &InfluxObserver{
		w:        w,
		database: database,
		tags:     tags,
		log:      slog.Default().With("component", "influx"),
	}
}

var _ engine.Observer = (*InfluxObserver)(nil)

// OnDay implements engine.Observer.
func (o *InfluxObserver) OnDay(_ context.Context, r engine.DayReport) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  o.database,
		Precision: "s",
	})
	if err != nil {
		o.log.Warn("batch points", "error", err)
		return
	}

	pt, err := client.NewPoint("equity", o.tags, map[string]interface{}{
		"cash":           r.Point.Cash.InexactFloat64(),
		"market":         r.Point.Market.InexactFloat64(),
		"total":          r.Point.Total.InexactFloat64(),
		"open_positions": r.OpenCount,
	}, r.Point.Date)
	if err != nil {
		o.log.Warn("equity point", "error", err)
		return
	}
	bp.AddPoint(pt)

	for _, p := range r.Opened {
		o.addTrade(bp, p, "open", p.OpenDate)
	}
	for _, p := range r.Closed {
		o.addTrade(bp, p, "close", p.CloseDate)
	}

	if err := o.w.Write(bp); err != nil {
		o.log.Warn("influx write failed", "date", r.Point.Date.Format(time.DateOnly), "error", err)
	}
}

func (o *InfluxObserver) addTrade(bp client.BatchPoints, p *domain.Position, side string, at time.Time) {
	tags := make(map[string]string, len(o.tags)+3)
	for k, v := range o.tags {
		tags[k] = v
	}
	tags["ticker"] = p.Ticker
	tags["side"] = side
	if p.CloseReason != domain.CloseNone {
		tags["reason"] = string(p.CloseReason)
	}

	fields := map[string]interface{}{
		"shares": p.Shares,
		"open":   p.OpenPrice,
		"stop":   p.StopPrice,
		"target": p.TargetPrice,
	}
	if side == "close" {
		fields["close"] = p.ClosePrice
		fields["pnl"] = p.RealizedPnL.InexactFloat64()
	}

	pt, err := client.NewPoint("trades", tags, fields, at)
	if err != nil {
		o.log.Warn("trade point", "ticker", p.Ticker, "error", err)
		return
	}
	bp.AddPoint(pt)
}
