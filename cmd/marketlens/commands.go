package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketlens/internal/analysis"
	"marketlens/internal/export"
	"marketlens/internal/marketdata/resample"
	"marketlens/internal/markethours"
	"marketlens/internal/model"
	"marketlens/internal/notification"
	"marketlens/internal/scheduler"

	"github.com/spf13/cobra"
)

// withApp loads the app, runs fn and releases stores afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func symbolArg(a *app, args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return a.cfg.Defaults.Symbol
}

func newIndicatorsCmd() *cobra.Command {
	var tf string
	var last int
	cmd := &cobra.Command{
		Use:   "indicators [symbol]",
		Short: "Print indicator rows for a symbol",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if tf == "" {
					tf = a.cfg.Defaults.Timeframe
				}
				timeframe, err := model.ParseTimeframe(tf)
				if err != nil {
					return err
				}
				rows, err := a.svc.Indicators(ctx, symbolArg(a, args), timeframe)
				if err != nil {
					return err
				}
				if last > 0 && len(rows) > last {
					rows = rows[len(rows)-last:]
				}
				if wantJSON() {
					return printJSON(rows)
				}
				out := make([][]string, 0, len(rows))
				for _, r := range rows {
					out = append(out, []string{
						r.Date.Format(model.DateLayout),
						fmtNull(r.Close),
						fmtNull(r.PriceChangePct),
						fmtNull(r.RollingMean20),
						fmtNull(r.EMA12),
						fmtNull(r.EMA26),
						fmtNull(r.RSI14),
						fmtNull(r.BBUpper),
						fmtNull(r.BBLower),
					})
				}
				renderTable([]string{"Date", "Close", "Chg %", "MA20", "EMA12", "EMA26", "RSI14", "BB Upper", "BB Lower"}, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&tf, "timeframe", "t", "", "timeframe selector (1D, 1W, 1M, 6M, 1Y, 3Y, 5Y, ALL)")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "show only the last N rows (0 for all)")
	return cmd
}

func newTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend [symbol...]",
		Short: "Classify short, mid and long term trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				symbols := args
				if len(symbols) == 0 {
					symbols = []string{a.cfg.Defaults.Symbol}
				}
				verdicts := make(map[string]model.TrendVerdict, len(symbols))
				var out [][]string
				for _, sym := range symbols {
					v, err := a.svc.Trend(ctx, sym)
					if err != nil {
						return fmt.Errorf("%s: %w", sym, err)
					}
					sym = model.NormalizeSymbol(sym)
					verdicts[sym] = v
					out = append(out, []string{
						sym,
						string(v.ShortTerm),
						string(v.MidTerm),
						string(v.LongTerm),
						fmtFloat(v.Confidence),
					})
				}
				if wantJSON() {
					return printJSON(verdicts)
				}
				renderTable([]string{"Symbol", "Short", "Mid", "Long", "Confidence"}, out)
				return nil
			})
		},
	}
}

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict [symbol]",
		Short: "Project prices over the configured horizons",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rep, err := a.svc.Predict(ctx, symbolArg(a, args))
				if err != nil {
					return err
				}
				if wantJSON() {
					return printJSON(rep)
				}
				fmt.Printf("%s  current close %s  confidence %s\n\n", rep.Symbol, fmtFloat(rep.CurrentClose), fmtFloat(rep.Confidence))
				out := make([][]string, 0, len(rep.Horizons))
				for _, h := range rep.Horizons {
					out = append(out, []string{h.Name, strconv.Itoa(h.Days), fmtNull(h.Price), string(h.Trend), fmtFloat(h.Confidence)})
				}
				renderTable([]string{"Horizon", "Days", "Price", "Trend", "Confidence"}, out)
				return nil
			})
		},
	}
}

func newMoversCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "movers",
		Short: "Show top gainers and losers by last close",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				mv, err := a.svc.Movers(ctx, limit)
				if err != nil {
					return err
				}
				if wantJSON() {
					return printJSON(mv)
				}
				for _, side := range []struct {
					title string
					list  []model.Mover
				}{{"Top gainers", mv.Gainers}, {"Top losers", mv.Losers}} {
					fmt.Println(side.title)
					out := make([][]string, 0, len(side.list))
					for _, m := range side.list {
						out = append(out, []string{m.Symbol, fmtFloat(m.PrevClose), fmtFloat(m.Close), fmtPct(m.ChangePercent)})
					}
					renderTable([]string{"Symbol", "Prev", "Close", "Change"}, out)
					fmt.Println()
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", analysis.DefaultMoversLimit, "entries per side")
	return cmd
}

func newExportCmd() *cobra.Command {
	var tf, outFmt, outPath string
	var all bool
	cmd := &cobra.Command{
		Use:   "export [symbol]",
		Short: "Write indicator rows to CSV or Parquet",
		Long: `Write indicator rows to CSV or Parquet.

With --all every stored symbol is exported into the directory given by -o.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(outFmt)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if tf == "" {
					tf = a.cfg.Defaults.Timeframe
				}
				timeframe, err := model.ParseTimeframe(tf)
				if err != nil {
					return err
				}
				if !all {
					sym := model.NormalizeSymbol(symbolArg(a, args))
					path := outPath
					if path == "" {
						path = fmt.Sprintf("%s_%s.%s", sym, timeframe, f.Ext())
					}
					n, err := exportOne(ctx, a, sym, timeframe, f, path)
					if err != nil {
						return err
					}
					fmt.Printf("Wrote %d rows to %s\n", n, path)
					return nil
				}
				return exportAll(ctx, a, timeframe, f, outPath)
			})
		},
	}
	cmd.Flags().StringVarP(&tf, "timeframe", "t", "", "timeframe selector")
	cmd.Flags().StringVarP(&outFmt, "file-format", "f", "csv", "csv or parquet")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file, or directory with --all")
	cmd.Flags().BoolVar(&all, "all", false, "export every stored symbol")
	return cmd
}

func exportOne(ctx context.Context, a *app, sym string, tf model.Timeframe, f export.Format, path string) (int, error) {
	rows, err := a.svc.Indicators(ctx, sym, tf)
	if err != nil {
		return 0, err
	}
	if f == export.Parquet {
		return len(rows), export.WriteParquetFile(path, rows)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := export.WriteCSV(file, rows); err != nil {
		file.Close()
		return 0, err
	}
	return len(rows), file.Close()
}

func exportAll(ctx context.Context, a *app, tf model.Timeframe, f export.Format, dir string) error {
	if dir == "" {
		dir = "export"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	symbols, err := a.store.Symbols(ctx)
	if err != nil {
		return err
	}
	bar := newBar(len(symbols), "Exporting")
	var skipped []string
	for i, sym := range symbols {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", sym, tf, f.Ext()))
		if _, err := exportOne(ctx, a, sym, tf, f, path); err != nil {
			skipped = append(skipped, fmt.Sprintf("%s (%v)", sym, err))
		}
		bar.Set(i + 1)
	}
	bar.Finish()
	fmt.Printf("\nExported %d/%d symbols to %s\n", len(symbols)-len(skipped), len(symbols), dir)
	for _, s := range skipped {
		fmt.Printf("  skipped %s\n", s)
	}
	return nil
}

func newSweepCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "sweep [symbol...]",
		Short: "Run one trend sweep now",
		Long: `Run one trend sweep now. With no symbols, the configured sweep list is
used, falling back to every stored symbol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				job, err := a.sweepJob(args)
				if err != nil {
					return err
				}
				if !notify {
					job.Notifier = nil
				}
				run, err := job.RunOnce(ctx)
				if err != nil {
					return err
				}
				if wantJSON() {
					return printJSON(run)
				}
				out := make([][]string, 0, len(run.Results))
				for _, r := range run.Results {
					if r.Error != "" {
						out = append(out, []string{r.Symbol, "-", "-", "-", "-", r.Error})
						continue
					}
					v := r.Verdict
					out = append(out, []string{r.Symbol, string(v.ShortTerm), string(v.MidTerm), string(v.LongTerm), fmtFloat(v.Confidence), ""})
				}
				renderTable([]string{"Symbol", "Short", "Mid", "Long", "Confidence", "Error"}, out)
				fmt.Printf("\n%d symbols, %d failures, took %s\n", len(run.Results), run.Failures, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "send the sweep alert to configured notifiers")
	return cmd
}

// sweepJob builds the sweep job shared by the scheduler and the sweep command.
// The calendar only gates cron ticks; RunOnce always sweeps.
func (a *app) sweepJob(symbols []string) (*scheduler.SweepJob, error) {
	if len(symbols) == 0 {
		symbols = a.cfg.Sweep.Symbols
	}
	job := &scheduler.SweepJob{
		Sweeper:        a.svc,
		Symbols:        symbols,
		Notifier:       a.notifier(),
		AlertThreshold: a.cfg.Sweep.AlertThreshold,
	}
	if a.sqlite != nil {
		job.Recorder = a.sqlite
	}
	if a.redis != nil {
		job.Publish = append(job.Publish, a.redis.PublishSweep)
	}
	cal, err := markethours.NewCalendar(a.cfg.Sweep.Holidays)
	if err != nil {
		return nil, err
	}
	job.Calendar = cal
	return job, nil
}

func (a *app) notifier() notification.Notifier {
	sc := a.cfg.Sweep
	multi := notification.Multi{notification.NewLogNotifier()}
	if sc.WebhookURL != "" {
		multi = append(multi, retrying(notification.NewWebhookNotifier(sc.WebhookURL)))
	}
	if sc.TelegramToken != "" && sc.TelegramChatID != "" {
		multi = append(multi, retrying(notification.NewTelegramNotifier(sc.TelegramToken, sc.TelegramChatID)))
	}
	return multi
}

func retrying(n notification.Notifier) notification.Notifier {
	return notification.Retrying{Notifier: n, Attempts: 3, Backoff: 2 * time.Second}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [symbol...]",
		Short: "Copy price series from the SQL store into Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.redis == nil {
					return fmt.Errorf("sync requires redis.addr")
				}
				if a.store == model.SeriesStore(a.redis) {
					return fmt.Errorf("sync source and target are both redis")
				}
				symbols := args
				if len(symbols) == 0 {
					var err error
					if symbols, err = a.store.Symbols(ctx); err != nil {
						return err
					}
				}
				if cat, ok := a.store.(model.Catalog); ok {
					if infos, err := cat.AllStocks(ctx); err == nil && len(infos) > 0 {
						if err := a.redis.UpsertInfo(ctx, infos); err != nil {
							return err
						}
					}
				}

				bar := newBar(len(symbols), "Syncing")
				points := 0
				for i, sym := range symbols {
					s, err := a.store.Fetch(ctx, sym, model.DateRange{})
					if err != nil {
						return fmt.Errorf("%s: %w", sym, err)
					}
					if err := a.redis.UpsertSeries(ctx, s); err != nil {
						return fmt.Errorf("%s: %w", sym, err)
					}
					points += s.Len()
					bar.Set(i + 1)
				}
				bar.Finish()
				fmt.Printf("\nSynced %d symbols (%d points) to %s\n", len(symbols), points, a.cfg.Redis.Addr)
				return nil
			})
		},
	}
}

func newTimeframesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeframes",
		Short: "List timeframe selectors and their windowing rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			tfs := model.AllTimeframes()
			if wantJSON() {
				return printJSON(tfs)
			}
			out := make([][]string, 0, len(tfs))
			for _, tf := range tfs {
				p, err := resample.PolicyFor(tf)
				if err != nil {
					return err
				}
				out = append(out, []string{tf.String(), describePolicy(p)})
			}
			renderTable([]string{"Timeframe", "Rule"}, out)
			return nil
		},
	}
}

func describePolicy(p resample.Policy) string {
	switch p.Kind {
	case resample.KindWeek:
		return "weekly buckets ending Sunday"
	case resample.KindMonth:
		return "monthly buckets ending month end"
	case resample.KindTail:
		return fmt.Sprintf("last %d rows", p.Days)
	}
	return "full history"
}
