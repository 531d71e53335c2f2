package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"marketlens/internal/model"
)

// LinearModel is an autoregressive model artifact: the next scaled close is
// Bias + Σ Weights[i]·window[i] over the trailing len(Weights) values.
type LinearModel struct {
	Symbol  string    `json:"symbol"`
	Window  int       `json:"window"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Validate checks the artifact is usable.
func (m *LinearModel) Validate() error {
	if len(m.Weights) == 0 {
		return errors.New("model has no weights")
	}
	if m.Window != 0 && m.Window != len(m.Weights) {
		return fmt.Errorf("model window %d does not match %d weights", m.Window, len(m.Weights))
	}
	return nil
}

// Predict implements Predictor. The model is read-only after load.
func (m *LinearModel) Predict(_ context.Context, window []float64) (float64, error) {
	n := len(m.Weights)
	if len(window) < n {
		return 0, fmt.Errorf("window has %d values, model needs %d", len(window), n)
	}
	tail := window[len(window)-n:]
	v := m.Bias
	for i, w := range m.Weights {
		v += w * tail[i]
	}
	return v, nil
}

// FileSource loads "<Dir>/<SYMBOL>_model.json" artifacts and caches them.
type FileSource struct {
	Dir string

	mu    sync.RWMutex
	cache map[string]*LinearModel
}

// NewFileSource creates a model source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir, cache: make(map[string]*LinearModel)}
}

// ModelPath returns the artifact path for symbol.
func (s *FileSource) ModelPath(symbol string) string {
	return filepath.Join(s.Dir, model.NormalizeSymbol(symbol)+"_model.json")
}

// Load implements Source.
func (s *FileSource) Load(_ context.Context, symbol string) (Predictor, error) {
	sym := model.NormalizeSymbol(symbol)

	s.mu.RLock()
	m, ok := s.cache[sym]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	path := s.ModelPath(sym)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, model.NotFoundf("model for %s", sym)
	}
	if err != nil {
		return nil, model.Upstream("load model", err)
	}

	m = &LinearModel{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, model.Upstream("load model", fmt.Errorf("%s: %w", path, err))
	}
	if err := m.Validate(); err != nil {
		return nil, model.Upstream("load model", fmt.Errorf("%s: %w", path, err))
	}

	s.mu.Lock()
	s.cache[sym] = m
	s.mu.Unlock()
	log.Printf("[forecast] loaded model %s (%d weights)", path, len(m.Weights))
	return m, nil
}

// Save writes m as the artifact for its symbol.
func (s *FileSource) Save(m *LinearModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := s.ModelPath(m.Symbol)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	s.mu.Lock()
	delete(s.cache, model.NormalizeSymbol(m.Symbol))
	s.mu.Unlock()
	return nil
}
