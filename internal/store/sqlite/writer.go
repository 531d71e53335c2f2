package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketlens/internal/model"
)

// UpsertSeries writes every point of s in one transaction. Existing rows for
// the same (symbol, date) are replaced.
func (s *Store) UpsertSeries(ctx context.Context, series model.Series) error {
	sym := model.NormalizeSymbol(series.Symbol)
	if sym == "" {
		return fmt.Errorf("sqlite upsert: empty symbol")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stocks (date, symbol, open, high, low, close, close_norm)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, close_norm = excluded.close_norm
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range series.Points {
		if _, err := stmt.ExecContext(ctx,
			model.Day(p.Date).Format(model.DateLayout), sym,
			p.Open, p.High, p.Low, p.Close, p.CloseNorm,
		); err != nil {
			return fmt.Errorf("sqlite insert %s %s: %w", sym, p.Date.Format(model.DateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// UpsertInfo writes catalog entries.
func (s *Store) UpsertInfo(ctx context.Context, infos []model.StockInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	for _, si := range infos {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_info (symbol, company_name, category) VALUES (?, ?, ?)
			ON CONFLICT (symbol) DO UPDATE SET
				company_name = excluded.company_name, category = excluded.category
		`, model.NormalizeSymbol(si.Symbol), nullIfEmpty(si.CompanyName), nullIfEmpty(si.Category)); err != nil {
			return fmt.Errorf("sqlite insert stock_info %s: %w", si.Symbol, err)
		}
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RecordSweep implements model.SweepRecorder.
func (s *Store) RecordSweep(ctx context.Context, run model.SweepRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sweep_runs (started_at, finished_at, symbols, failures) VALUES (?, ?, ?, ?)`,
		run.StartedAt.Unix(), run.FinishedAt.Unix(), len(run.Results), run.Failures)
	if err != nil {
		return fmt.Errorf("sqlite insert sweep_runs: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite sweep run id: %w", err)
	}

	for _, r := range run.Results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sweep_results (run_id, symbol, short_term, mid_term, long_term, confidence, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Symbol, string(r.Verdict.ShortTerm), string(r.Verdict.MidTerm),
			string(r.Verdict.LongTerm), r.Verdict.Confidence, nullIfEmpty(r.Error),
		); err != nil {
			return fmt.Errorf("sqlite insert sweep_results: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// LastSweep returns the most recent recorded run, or ErrNotFound.
func (s *Store) LastSweep(ctx context.Context) (model.SweepRun, error) {
	var (
		id                int64
		started, finished int64
		run               model.SweepRun
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, failures FROM sweep_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &started, &finished, &run.Failures)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SweepRun{}, model.NotFoundf("sweep run")
		}
		return model.SweepRun{}, model.Upstream("sqlite last sweep", err)
	}
	run.StartedAt = time.Unix(started, 0).UTC()
	run.FinishedAt = time.Unix(finished, 0).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COALESCE(short_term, ''), COALESCE(mid_term, ''), COALESCE(long_term, ''),
		       COALESCE(confidence, 0), COALESCE(error, '')
		FROM sweep_results WHERE run_id = ? ORDER BY symbol`, id)
	if err != nil {
		return model.SweepRun{}, model.Upstream("sqlite last sweep", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.SweepResult
		var st, mt, lt string
		if err := rows.Scan(&r.Symbol, &st, &mt, &lt, &r.Verdict.Confidence, &r.Error); err != nil {
			return model.SweepRun{}, model.Upstream("sqlite last sweep", err)
		}
		r.Verdict.ShortTerm, r.Verdict.MidTerm, r.Verdict.LongTerm = model.Trend(st), model.Trend(mt), model.Trend(lt)
		run.Results = append(run.Results, r)
	}
	return run, model.Upstream("sqlite last sweep", rows.Err())
}
