// Package redis implements the series store on Redis. Each symbol's daily
// points live in a sorted set scored by day number, so date-range reads are
// a single ZRANGEBYSCORE.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketlens/internal/breaker"
	"marketlens/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store reads and writes series, catalog entries and sweep broadcasts.
// Reads pass through the circuit breaker when one is set.
type Store struct {
	client *goredis.Client
	cb     *breaker.Breaker
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Open creates a client and pings the server.
func Open(cfg Config, cb *breaker.Breaker) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if cb != nil && cb.IsFailure == nil {
		cb.IsFailure = func(err error) bool {
			return !errors.Is(err, model.ErrNotFound) && !errors.Is(err, goredis.Nil)
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client, cb: cb}, nil
}

func (s *Store) guard(fn func() error) error {
	if s.cb == nil {
		return fn()
	}
	return s.cb.Execute(fn)
}

// Fetch implements model.SeriesStore.
func (s *Store) Fetch(ctx context.Context, symbol string, r model.DateRange) (model.Series, error) {
	sym := model.NormalizeSymbol(symbol)
	min, max := "-inf", "+inf"
	if !r.Since.IsZero() {
		min = strconv.FormatFloat(dayScore(r.Since), 'f', 0, 64)
	}
	if !r.Until.IsZero() {
		max = strconv.FormatFloat(dayScore(r.Until), 'f', 0, 64)
	}

	var members []string
	err := s.guard(func() error {
		var err error
		members, err = s.client.ZRangeByScore(ctx, SeriesKey(sym), &goredis.ZRangeBy{Min: min, Max: max}).Result()
		return err
	})
	if err != nil {
		return model.Series{}, model.Upstream("redis fetch", err)
	}
	if len(members) == 0 {
		return model.Series{}, model.NotFoundf("symbol %s", sym)
	}

	series := model.Series{Symbol: sym, Points: make([]model.PricePoint, 0, len(members))}
	for _, m := range members {
		p, err := decodePoint(m)
		if err != nil {
			log.Printf("[redis] skipping bad member in %s: %v", SeriesKey(sym), err)
			continue
		}
		series.Points = append(series.Points, p)
	}
	return series.Sanitized(), nil
}

// Symbols implements model.SeriesStore.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	var syms []string
	err := s.guard(func() error {
		var err error
		syms, err = s.client.SMembers(ctx, symbolsKey).Result()
		return err
	})
	if err != nil {
		return nil, model.Upstream("redis symbols", err)
	}
	sort.Strings(syms)
	return syms, nil
}

// RecentCloses implements model.RecentCloser with one pipelined
// ZREVRANGE per symbol.
func (s *Store) RecentCloses(ctx context.Context, n int) (map[string][]float64, error) {
	syms, err := s.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(syms))
	err = s.guard(func() error {
		pipe := s.client.Pipeline()
		cmds := make(map[string]*goredis.StringSliceCmd, len(syms))
		for _, sym := range syms {
			cmds[sym] = pipe.ZRevRange(ctx, SeriesKey(sym), 0, int64(n-1))
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		for sym, cmd := range cmds {
			for _, m := range cmd.Val() {
				p, err := decodePoint(m)
				if err != nil || !model.IsFinite(p.Close) {
					continue
				}
				out[sym] = append(out[sym], p.Close)
			}
		}
		return nil
	})
	if err != nil {
		return nil, model.Upstream("redis recent closes", err)
	}
	return out, nil
}

// ── Catalog ──

func (s *Store) loadInfo(ctx context.Context) ([]model.StockInfo, error) {
	var raw map[string]string
	err := s.guard(func() error {
		var err error
		raw, err = s.client.HGetAll(ctx, stockInfoKey).Result()
		return err
	})
	if err != nil {
		return nil, model.Upstream("redis stock_info", err)
	}
	out := make([]model.StockInfo, 0, len(raw))
	for sym, v := range raw {
		var si model.StockInfo
		if err := json.Unmarshal([]byte(v), &si); err != nil {
			si = model.StockInfo{}
		}
		si.Symbol = sym
		out = append(out, si)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// Search matches the query against symbol, company name and category.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]model.StockInfo, error) {
	if limit <= 0 {
		limit = 10
	}
	all, err := s.loadInfo(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []model.StockInfo{}
	for _, si := range all {
		if strings.Contains(strings.ToLower(si.Symbol), q) ||
			strings.Contains(strings.ToLower(si.CompanyName), q) ||
			strings.Contains(strings.ToLower(si.Category), q) {
			out = append(out, si)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ByCategory lists the companies in a category (case-insensitive).
func (s *Store) ByCategory(ctx context.Context, category string) ([]model.StockInfo, error) {
	all, err := s.loadInfo(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.StockInfo{}
	for _, si := range all {
		if strings.EqualFold(si.Category, strings.TrimSpace(category)) {
			out = append(out, si)
		}
	}
	return out, nil
}

// AllStocks lists every catalog entry ordered by symbol.
func (s *Store) AllStocks(ctx context.Context) ([]model.StockInfo, error) {
	return s.loadInfo(ctx)
}

// Categories lists distinct non-empty categories, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	all, err := s.loadInfo(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, si := range all {
		if si.Category != "" && !seen[si.Category] {
			seen[si.Category] = true
			out = append(out, si.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
