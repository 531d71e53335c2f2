package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"marketlens/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// UpsertSeries writes every point of s in one pipeline. A point replaces any
// member already stored for the same day.
func (s *Store) UpsertSeries(ctx context.Context, series model.Series) error {
	sym := model.NormalizeSymbol(series.Symbol)
	if sym == "" {
		return fmt.Errorf("redis upsert: empty symbol")
	}
	key := SeriesKey(sym)

	pipe := s.client.TxPipeline()
	for _, p := range series.Points {
		member, err := encodePoint(p)
		if err != nil {
			log.Printf("[redis] skipping %s point: %v", sym, err)
			continue
		}
		score := dayScore(p.Date)
		scoreStr := fmt.Sprintf("%.0f", score)
		pipe.ZRemRangeByScore(ctx, key, scoreStr, scoreStr)
		pipe.ZAdd(ctx, key, &goredis.Z{Score: score, Member: member})
	}
	pipe.SAdd(ctx, symbolsKey, sym)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert %s: %w", sym, err)
	}
	return nil
}

// UpsertInfo writes catalog entries into the stock_info hash.
func (s *Store) UpsertInfo(ctx context.Context, infos []model.StockInfo) error {
	if len(infos) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(infos)*2)
	for _, si := range infos {
		sym := model.NormalizeSymbol(si.Symbol)
		si.Symbol = sym
		b, err := json.Marshal(si)
		if err != nil {
			return fmt.Errorf("redis marshal stock_info: %w", err)
		}
		values = append(values, sym, string(b))
	}
	if err := s.client.HSet(ctx, stockInfoKey, values...).Err(); err != nil {
		return fmt.Errorf("redis hset stock_info: %w", err)
	}
	return nil
}

// PublishSweep broadcasts a completed sweep on SweepChannel.
func (s *Store) PublishSweep(ctx context.Context, run model.SweepRun) error {
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("redis marshal sweep: %w", err)
	}
	return s.client.Publish(ctx, SweepChannel, b).Err()
}

// SubscribeSweeps calls fn with every sweep payload published on
// SweepChannel. Blocks until ctx is cancelled.
func (s *Store) SubscribeSweeps(ctx context.Context, fn func(payload []byte)) error {
	pubsub := s.client.Subscribe(ctx, SweepChannel)
	defer pubsub.Close()

	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", SweepChannel, err)
	}
	log.Printf("[redis] subscribed to %s", SweepChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}
