package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the analysis pipeline from concrete storage
// implementations (SQLite, Postgres, Redis).

// SeriesStore is a row-store of daily prices queried by symbol and date range.
type SeriesStore interface {
	// Fetch returns the symbol's points ascending by date. Symbol matching is
	// case-insensitive. Returns ErrNotFound when the symbol has zero rows.
	Fetch(ctx context.Context, symbol string, r DateRange) (Series, error)

	// Symbols lists every symbol that has at least one row.
	Symbols(ctx context.Context) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// Catalog exposes symbol metadata for lookup endpoints.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]StockInfo, error)
	ByCategory(ctx context.Context, category string) ([]StockInfo, error)
	AllStocks(ctx context.Context) ([]StockInfo, error)
	Categories(ctx context.Context) ([]string, error)
}

// SeriesWriter persists price rows and catalog entries.
type SeriesWriter interface {
	UpsertSeries(ctx context.Context, s Series) error
	UpsertInfo(ctx context.Context, infos []StockInfo) error
}

// RecentCloser is implemented by stores that can return every symbol's most
// recent closes in a single query, newest first.
type RecentCloser interface {
	RecentCloses(ctx context.Context, n int) (map[string][]float64, error)
}

// SweepRecorder persists sweep runs.
type SweepRecorder interface {
	RecordSweep(ctx context.Context, run SweepRun) error
}
