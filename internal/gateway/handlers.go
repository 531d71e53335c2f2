package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"marketlens/internal/analysis"
	"marketlens/internal/export"
	"marketlens/internal/metrics"
	"marketlens/internal/model"

	"github.com/gorilla/websocket"
)

// Options configures the HTTP surface.
type Options struct {
	DefaultSymbol    string
	DefaultTimeframe model.Timeframe
	AllowedOrigins   []string
	RateLimit        *IPRateLimiter // nil disables limiting
	Metrics          *metrics.Metrics
	Health           *metrics.HealthStatus
}

// API serves the REST and websocket endpoints.
type API struct {
	svc      *analysis.Service
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
}

// NewAPI creates the HTTP API over svc. hub may be nil to disable /ws.
func NewAPI(svc *analysis.Service, hub *Hub, opts Options) *API {
	if opts.DefaultSymbol == "" {
		opts.DefaultSymbol = "NEPSE"
	}
	if opts.DefaultTimeframe == "" {
		opts.DefaultTimeframe = model.TF1Y
	}
	if hub != nil {
		hub.DefaultTimeframe = opts.DefaultTimeframe
	}
	a := &API{svc: svc, hub: hub, opts: opts}
	a.upgrader = websocket.Upgrader{
		CheckOrigin: a.checkOrigin,
	}
	return a
}

func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(a.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range a.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Handler returns the routed handler wrapped in the middleware stack.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return Chain(mux,
		Recover(),
		WithTrace(),
		CORS(a.opts.AllowedOrigins),
		RateLimit(a.opts.RateLimit),
		Instrument(a.opts.Metrics),
	)
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks", a.handleStocks)
	mux.HandleFunc("GET /api/technical-status", a.handleTechnicalStatus)
	mux.HandleFunc("GET /api/predict", a.handlePredict)
	mux.HandleFunc("GET /api/search-suggestions", a.handleSearch)
	mux.HandleFunc("GET /api/companies-by-category", a.handleByCategory)
	mux.HandleFunc("GET /api/all-stocks", a.handleAllStocks)
	mux.HandleFunc("GET /api/categories", a.handleCategories)
	mux.HandleFunc("GET /api/market-movers", a.handleMovers)
	mux.HandleFunc("GET /api/timeframes", a.handleTimeframes)
	mux.HandleFunc("GET /api/export", a.handleExport)
	mux.HandleFunc("GET /api/v1/health", a.handleHealth)

	if a.hub != nil {
		mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
			conn, err := a.upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Printf("[gateway] ws upgrade error: %v", err)
				return
			}
			a.hub.HandleConn(conn)
		})
	}
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errBadRequest)
}

func (a *API) symbolParam(r *http.Request) string {
	if s := model.NormalizeSymbol(r.URL.Query().Get("symbol")); s != "" {
		return s
	}
	return a.opts.DefaultSymbol
}

func (a *API) timeframeParam(r *http.Request) (model.Timeframe, error) {
	raw := r.URL.Query().Get("timeframe")
	if raw == "" {
		return a.opts.DefaultTimeframe, nil
	}
	return model.ParseTimeframe(raw)
}

func (a *API) handleStocks(w http.ResponseWriter, r *http.Request) {
	symbol := a.symbolParam(r)
	tf, err := a.timeframeParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := a.svc.Indicators(r.Context(), symbol, tf)
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorBody{
			Error:   fmt.Sprintf("No data found for symbol %s", symbol),
			Records: []RowOut{},
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StocksResponse{Symbol: symbol, Timeframe: string(tf), Records: toRowsOut(rows)})
}

func toTechnicalStatus(symbol string, v model.TrendVerdict) TechnicalStatus {
	return TechnicalStatus{
		Symbol:     model.NormalizeSymbol(symbol),
		ShortTerm:  v.ShortTerm,
		MidTerm:    v.MidTerm,
		LongTerm:   v.LongTerm,
		Confidence: v.Confidence,
	}
}

func (a *API) handleTechnicalStatus(w http.ResponseWriter, r *http.Request) {
	symbol := a.symbolParam(r)
	v, err := a.svc.Trend(r.Context(), symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTechnicalStatus(symbol, v))
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, r, errorf("symbol is required"))
		return
	}
	rep, err := a.svc.Predict(r.Context(), symbol)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPredictResponse(rep))
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, r, errorf("limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	out, err := a.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (a *API) handleByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		writeError(w, r, errorf("category is required"))
		return
	}
	out, err := a.svc.ByCategory(r.Context(), category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (a *API) handleAllStocks(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.AllStocks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleMovers(w http.ResponseWriter, r *http.Request) {
	mv, err := a.svc.Movers(r.Context(), analysis.DefaultMoversLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

func (a *API) handleTimeframes(w http.ResponseWriter, r *http.Request) {
	tfs := model.AllTimeframes()
	out := make([]string, len(tfs))
	for i, tf := range tfs {
		out[i] = string(tf)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport renders the indicator rows as a file download. The body is
// buffered so encoding errors still produce a proper status.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeError(w, r, errorf("symbol is required"))
		return
	}
	tf, err := a.timeframeParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, errorf("%v", err))
		return
	}

	rows, err := a.svc.Indicators(r.Context(), symbol, tf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.%s"`, symbol, tf, format.Ext()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.opts.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	report, code := a.opts.Health.Snapshot()
	writeJSON(w, code, report)
}

func nonNil(in []model.StockInfo) []model.StockInfo {
	if in == nil {
		return []model.StockInfo{}
	}
	return in
}
