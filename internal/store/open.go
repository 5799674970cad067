package store

import (
	"context"
	"fmt"
)

// OpenBarStore opens the bar store named by source ("parquet", "csv" or
// "postgres"). The returned close function is never nil.
func OpenBarStore(ctx context.Context, source, dataDir, csvDir, postgresURL string) (BarStore, func(), error) {
	switch source {
	case "", "parquet":
		return NewParquetStore(dataDir), func() {}, nil
	case "csv":
		return NewCSVStore(csvDir), func() {}, nil
	case "postgres":
		ps, err := NewPostgresStore(ctx, postgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		return ps, ps.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown bar source %q", source)
	}
}
