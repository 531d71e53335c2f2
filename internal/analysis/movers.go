package analysis

import (
	"context"
	"sort"
	"time"

	"marketlens/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultMoversLimit is the size of each gainers/losers list.
const DefaultMoversLimit = 10

const moverHistory = 7

// Movers ranks every symbol by its latest close-to-close change. Symbols
// with fewer than two closes are skipped. Returns NotFound when nothing
// qualifies.
func (svc *Service) Movers(ctx context.Context, limit int) (model.MarketMovers, error) {
	defer svc.observe("movers", time.Now())

	if limit <= 0 {
		limit = DefaultMoversLimit
	}

	recent, err := svc.recentCloses(ctx)
	if err != nil {
		return model.MarketMovers{}, err
	}

	names := make(map[string]string)
	if svc.catalog != nil {
		if infos, err := svc.catalog.AllStocks(ctx); err == nil {
			for _, si := range infos {
				names[model.NormalizeSymbol(si.Symbol)] = si.CompanyName
			}
		}
	}

	var movers []model.Mover
	for sym, closes := range recent {
		m, ok := buildMover(sym, closes)
		if !ok {
			continue
		}
		if n := names[model.NormalizeSymbol(sym)]; n != "" {
			m.CompanyName = n
		}
		movers = append(movers, m)
	}
	if len(movers) == 0 {
		return model.MarketMovers{}, model.NotFoundf("market movers")
	}
	return rankMovers(movers, limit), nil
}

// recentCloses returns up to moverHistory closes per symbol, newest first.
func (svc *Service) recentCloses(ctx context.Context) (map[string][]float64, error) {
	if rc, ok := svc.store.(model.RecentCloser); ok {
		m, err := rc.RecentCloses(ctx, moverHistory)
		if err != nil {
			return nil, model.Upstream("recent closes", err)
		}
		return m, nil
	}

	syms, err := svc.store.Symbols(ctx)
	if err != nil {
		return nil, model.Upstream("list symbols", err)
	}
	out := make(map[string][]float64, len(syms))
	for _, sym := range syms {
		s, err := svc.fetch(ctx, sym)
		if err != nil {
			continue
		}
		closes := s.Closes()
		var newest []float64
		for i := len(closes) - 1; i >= 0 && len(newest) < moverHistory; i-- {
			newest = append(newest, closes[i])
		}
		out[sym] = newest
	}
	return out, nil
}

// buildMover expects closes newest first.
func buildMover(symbol string, closes []float64) (model.Mover, bool) {
	if len(closes) < 2 || closes[1] == 0 || !model.IsFinite(closes[0]) || !model.IsFinite(closes[1]) {
		return model.Mover{}, false
	}
	cur, prev := decimal.NewFromFloat(closes[0]), decimal.NewFromFloat(closes[1])
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)

	last := closes
	if len(last) > moverHistory {
		last = last[:moverHistory]
	}
	sym := model.NormalizeSymbol(symbol)
	return model.Mover{
		Symbol:        sym,
		CompanyName:   sym,
		Close:         closes[0],
		PrevClose:     closes[1],
		ChangePercent: pct.InexactFloat64(),
		Last7Days:     append([]float64(nil), last...),
	}, true
}

// rankMovers keeps positive changes descending and negative changes
// ascending, ties broken by symbol.
func rankMovers(all []model.Mover, limit int) model.MarketMovers {
	var out model.MarketMovers
	for _, m := range all {
		switch {
		case m.ChangePercent > 0:
			out.Gainers = append(out.Gainers, m)
		case m.ChangePercent < 0:
			out.Losers = append(out.Losers, m)
		}
	}
	sort.Slice(out.Gainers, func(i, j int) bool {
		a, b := out.Gainers[i], out.Gainers[j]
		if a.ChangePercent != b.ChangePercent {
			return a.ChangePercent > b.ChangePercent
		}
		return a.Symbol < b.Symbol
	})
	sort.Slice(out.Losers, func(i, j int) bool {
		a, b := out.Losers[i], out.Losers[j]
		if a.ChangePercent != b.ChangePercent {
			return a.ChangePercent < b.ChangePercent
		}
		return a.Symbol < b.Symbol
	})
	if len(out.Gainers) > limit {
		out.Gainers = out.Gainers[:limit]
	}
	if len(out.Losers) > limit {
		out.Losers = out.Losers[:limit]
	}
	if out.Gainers == nil {
		out.Gainers = []model.Mover{}
	}
	if out.Losers == nil {
		out.Losers = []model.Mover{}
	}
	return out
}
