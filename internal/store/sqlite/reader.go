package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

// Fetch implements model.SeriesStore. Rows with a NULL close are skipped.
func (s *Store) Fetch(ctx context.Context, symbol string, r model.DateRange) (model.Series, error) {
	sym := model.NormalizeSymbol(symbol)
	q := strings.Builder{}
	q.WriteString(`
		SELECT date, open, high, low, close, close_norm
		FROM stocks
		WHERE UPPER(symbol) = ? AND close IS NOT NULL`)
	args := []any{sym}
	if !r.Since.IsZero() {
		q.WriteString(` AND date >= ?`)
		args = append(args, r.Since.Format(model.DateLayout))
	}
	if !r.Until.IsZero() {
		q.WriteString(` AND date <= ?`)
		args = append(args, r.Until.Format(model.DateLayout))
	}
	q.WriteString(` ORDER BY date ASC`)

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return model.Series{}, model.Upstream("sqlite fetch", fmt.Errorf("query stocks: %w", err))
	}
	defer rows.Close()

	series := model.Series{Symbol: sym}
	for rows.Next() {
		var (
			date            string
			open, high, low null.Float
			p               model.PricePoint
		)
		if err := rows.Scan(&date, &open, &high, &low, &p.Close, &p.CloseNorm); err != nil {
			return model.Series{}, model.Upstream("sqlite fetch", fmt.Errorf("scan stocks: %w", err))
		}
		d, err := model.ParseDate(date)
		if err != nil {
			return model.Series{}, model.Upstream("sqlite fetch", fmt.Errorf("bad date %q: %w", date, err))
		}
		p.Date = d
		p.Open, p.High, p.Low = orNaN(open), orNaN(high), orNaN(low)
		series.Points = append(series.Points, p)
	}
	if err := rows.Err(); err != nil {
		return model.Series{}, model.Upstream("sqlite fetch", err)
	}
	if series.Empty() {
		return model.Series{}, model.NotFoundf("symbol %s", sym)
	}
	return series.Sanitized(), nil
}

// orNaN maps a NULL column to NaN, which the indicator engine reports as null.
func orNaN(f null.Float) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// Symbols implements model.SeriesStore.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT UPPER(symbol) FROM stocks ORDER BY 1`)
	if err != nil {
		return nil, model.Upstream("sqlite symbols", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, model.Upstream("sqlite symbols", err)
		}
		out = append(out, sym)
	}
	return out, model.Upstream("sqlite symbols", rows.Err())
}

// RecentCloses implements model.RecentCloser. Non-finite closes are dropped
// as Fetch drops them, so a symbol may return fewer than n values.
func (s *Store) RecentCloses(ctx context.Context, n int) (map[string][]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sym, close FROM (
			SELECT UPPER(symbol) AS sym, close, date,
			       ROW_NUMBER() OVER (PARTITION BY UPPER(symbol) ORDER BY date DESC) AS rn
			FROM stocks
			WHERE close IS NOT NULL
		)
		WHERE rn <= ?
		ORDER BY sym, date DESC
	`, n)
	if err != nil {
		return nil, model.Upstream("sqlite recent closes", err)
	}
	defer rows.Close()

	out := make(map[string][]float64)
	for rows.Next() {
		var sym string
		var c float64
		if err := rows.Scan(&sym, &c); err != nil {
			return nil, model.Upstream("sqlite recent closes", err)
		}
		if !model.IsFinite(c) {
			continue
		}
		out[sym] = append(out[sym], c)
	}
	return out, model.Upstream("sqlite recent closes", rows.Err())
}

// ── Catalog ──

const infoColumns = `symbol, COALESCE(company_name, ''), COALESCE(category, '')`

// Search matches the query against symbol, company name and category.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]model.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return s.queryInfo(ctx, `
		SELECT `+infoColumns+` FROM stock_info
		WHERE LOWER(symbol) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(category) LIKE ?
		ORDER BY symbol
		LIMIT ?`, like, like, like, limit)
}

// ByCategory lists the companies in a category (case-insensitive).
func (s *Store) ByCategory(ctx context.Context, category string) ([]model.StockInfo, error) {
	return s.queryInfo(ctx, `
		SELECT `+infoColumns+` FROM stock_info
		WHERE LOWER(category) = LOWER(?)
		ORDER BY symbol`, strings.TrimSpace(category))
}

// AllStocks lists every catalog entry ordered by symbol.
func (s *Store) AllStocks(ctx context.Context) ([]model.StockInfo, error) {
	return s.queryInfo(ctx, `SELECT `+infoColumns+` FROM stock_info ORDER BY symbol`)
}

// Categories lists distinct non-empty categories, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM stock_info
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, model.Upstream("sqlite categories", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, model.Upstream("sqlite categories", err)
		}
		out = append(out, c)
	}
	return out, model.Upstream("sqlite categories", rows.Err())
}

func (s *Store) queryInfo(ctx context.Context, query string, args ...any) ([]model.StockInfo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Upstream("sqlite stock_info", err)
	}
	defer rows.Close()
	return scanInfo(rows)
}

func scanInfo(rows *sql.Rows) ([]model.StockInfo, error) {
	out := []model.StockInfo{}
	for rows.Next() {
		var si model.StockInfo
		if err := rows.Scan(&si.Symbol, &si.CompanyName, &si.Category); err != nil {
			return nil, model.Upstream("sqlite stock_info", err)
		}
		out = append(out, si)
	}
	return out, model.Upstream("sqlite stock_info", rows.Err())
}
