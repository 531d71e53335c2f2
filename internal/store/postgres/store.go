// Package postgres implements the series store and catalog on PostgreSQL
// using a pgx connection pool. Prices are NUMERIC columns, read as text and
// parsed with decimal so no precision is lost before conversion.
package postgres

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Config configures the Postgres store.
type Config struct {
	DSN      string
	MaxConns int32
}

// Store reads daily prices and catalog metadata.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses the DSN, creates the pool and pings the server.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	log.Printf("[postgres] connected to %s", pcfg.ConnConfig.Host)
	return &Store{pool: pool}, nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Fetch implements model.SeriesStore.
func (s *Store) Fetch(ctx context.Context, symbol string, r model.DateRange) (model.Series, error) {
	sym := model.NormalizeSymbol(symbol)
	q := strings.Builder{}
	q.WriteString(`
		SELECT date::date, open::text, high::text, low::text, close::text, close_norm::text
		FROM stocks
		WHERE UPPER(symbol) = $1 AND close IS NOT NULL`)
	args := []any{sym}
	if !r.Since.IsZero() {
		args = append(args, model.Day(r.Since))
		fmt.Fprintf(&q, ` AND date >= $%d`, len(args))
	}
	if !r.Until.IsZero() {
		args = append(args, model.Day(r.Until))
		fmt.Fprintf(&q, ` AND date <= $%d`, len(args))
	}
	q.WriteString(` ORDER BY date ASC`)

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return model.Series{}, model.Upstream("postgres fetch", err)
	}
	defer rows.Close()

	series := model.Series{Symbol: sym}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return model.Series{}, model.Upstream("postgres fetch", err)
		}
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, model.Upstream("postgres fetch", err)
	}
	if series.Empty() {
		return model.Series{}, model.NotFoundf("symbol %s", sym)
	}
	return series.Sanitized(), nil
}

func scanPoint(rows pgx.Rows) (model.PricePoint, error) {
	var (
		date                               time.Time
		open, high, low, closeV, closeNorm *string
	)
	if err := rows.Scan(&date, &open, &high, &low, &closeV, &closeNorm); err != nil {
		return model.PricePoint{}, fmt.Errorf("scan stocks: %w", err)
	}
	p := model.PricePoint{Date: model.Day(date)}
	var err error
	if p.Open, err = parseNumeric(open); err != nil {
		return p, err
	}
	if p.High, err = parseNumeric(high); err != nil {
		return p, err
	}
	if p.Low, err = parseNumeric(low); err != nil {
		return p, err
	}
	if p.Close, err = parseNumeric(closeV); err != nil {
		return p, err
	}
	if closeNorm != nil {
		v, err := parseNumeric(closeNorm)
		if err != nil {
			return p, err
		}
		if !math.IsNaN(v) {
			p.CloseNorm = null.FloatFrom(v)
		}
	}
	return p, nil
}

// parseNumeric converts a NUMERIC text value. NULL and the NUMERIC 'NaN'
// literal become NaN.
func parseNumeric(s *string) (float64, error) {
	if s == nil || strings.EqualFold(*s, "NaN") {
		return math.NaN(), nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return d.InexactFloat64(), nil
}

// Symbols implements model.SeriesStore.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT UPPER(symbol) FROM stocks ORDER BY 1`)
	if err != nil {
		return nil, model.Upstream("postgres symbols", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return out, model.Upstream("postgres symbols", err)
}

// RecentCloses implements model.RecentCloser. NUMERIC 'NaN' closes are
// dropped as Fetch drops them.
func (s *Store) RecentCloses(ctx context.Context, n int) (map[string][]float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sym, close::text FROM (
			SELECT UPPER(symbol) AS sym, close, date,
			       ROW_NUMBER() OVER (PARTITION BY UPPER(symbol) ORDER BY date DESC) AS rn
			FROM stocks
			WHERE close IS NOT NULL
		) t
		WHERE rn <= $1
		ORDER BY sym, date DESC`, n)
	if err != nil {
		return nil, model.Upstream("postgres recent closes", err)
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var sym string
		var c *string
		if err := rows.Scan(&sym, &c); err != nil {
			return nil, model.Upstream("postgres recent closes", err)
		}
		v, err := parseNumeric(c)
		if err != nil {
			return nil, model.Upstream("postgres recent closes", err)
		}
		if !model.IsFinite(v) {
			continue
		}
		out[sym] = append(out[sym], v)
	}
	return out, model.Upstream("postgres recent closes", rows.Err())
}

// ── Catalog ──

const infoColumns = `symbol, COALESCE(company_name, ''), COALESCE(category, '')`

// Search matches the query against symbol, company name and category.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]model.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	like := "%" + strings.TrimSpace(query) + "%"
	return s.queryInfo(ctx, `
		SELECT `+infoColumns+` FROM stock_info
		WHERE symbol ILIKE $1 OR company_name ILIKE $1 OR category ILIKE $1
		ORDER BY symbol
		LIMIT $2`, like, limit)
}

// ByCategory lists the companies in a category (case-insensitive).
func (s *Store) ByCategory(ctx context.Context, category string) ([]model.StockInfo, error) {
	return s.queryInfo(ctx, `
		SELECT `+infoColumns+` FROM stock_info
		WHERE LOWER(category) = LOWER($1)
		ORDER BY symbol`, strings.TrimSpace(category))
}

// AllStocks lists every catalog entry ordered by symbol.
func (s *Store) AllStocks(ctx context.Context) ([]model.StockInfo, error) {
	return s.queryInfo(ctx, `SELECT `+infoColumns+` FROM stock_info ORDER BY symbol`)
}

// Categories lists distinct non-empty categories, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT category FROM stock_info
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, model.Upstream("postgres categories", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return out, model.Upstream("postgres categories", err)
}

func (s *Store) queryInfo(ctx context.Context, query string, args ...any) ([]model.StockInfo, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.Upstream("postgres stock_info", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StockInfo, error) {
		var si model.StockInfo
		err := row.Scan(&si.Symbol, &si.CompanyName, &si.Category)
		return si, err
	})
	if out == nil {
		out = []model.StockInfo{}
	}
	return out, model.Upstream("postgres stock_info", err)
}
