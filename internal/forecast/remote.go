package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketlens/internal/breaker"
	"marketlens/internal/model"
)

// RemoteSource resolves predictors served by an inference endpoint:
//
//	GET  {endpoint}/v1/models/{SYMBOL}          → 200 when a model exists, 404 otherwise
//	POST {endpoint}/v1/models/{SYMBOL}/predict  {"window":[...]} → {"value": x}
//
// Every call goes through the breaker; NotFound answers do not count as
// failures.
type RemoteSource struct {
	endpoint string
	client   *http.Client
	cb       *breaker.Breaker
}

// NewRemoteSource creates a remote predictor source. cb may be nil.
func NewRemoteSource(endpoint string, timeout time.Duration, cb *breaker.Breaker) *RemoteSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cb != nil && cb.IsFailure == nil {
		cb.IsFailure = func(err error) bool { return !errors.Is(err, model.ErrNotFound) }
	}
	return &RemoteSource{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		cb:       cb,
	}
}

func (s *RemoteSource) modelURL(symbol string) string {
	return s.endpoint + "/v1/models/" + url.PathEscape(model.NormalizeSymbol(symbol))
}

// Load implements Source.
func (s *RemoteSource) Load(ctx context.Context, symbol string) (Predictor, error) {
	err := s.call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.modelURL(symbol), nil)
		if err != nil {
			return fmt.Errorf("remote: create request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("remote: model lookup: %w", err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return model.NotFoundf("model for %s", model.NormalizeSymbol(symbol))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return fmt.Errorf("remote: model lookup: unexpected status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return nil, model.Upstream("load model", err)
	}
	return &RemotePredictor{src: s, symbol: model.NormalizeSymbol(symbol)}, nil
}

func (s *RemoteSource) call(fn func() error) error {
	if s.cb == nil {
		return fn()
	}
	return s.cb.Execute(fn)
}

// RemotePredictor calls the inference endpoint once per step.
type RemotePredictor struct {
	src    *RemoteSource
	symbol string
}

type predictRequest struct {
	Window []float64 `json:"window"`
}

type predictResponse struct {
	Value *float64 `json:"value"`
}

// Predict implements Predictor.
func (p *RemotePredictor) Predict(ctx context.Context, window []float64) (float64, error) {
	body, err := json.Marshal(predictRequest{Window: window})
	if err != nil {
		return 0, fmt.Errorf("remote: marshal: %w", err)
	}

	var out float64
	err = p.src.call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.src.modelURL(p.symbol)+"/predict", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("remote: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.src.client.Do(req)
		if err != nil {
			return fmt.Errorf("remote: predict: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return model.NotFoundf("model for %s", p.symbol)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("remote: predict: unexpected status %d", resp.StatusCode)
		}

		var pr predictResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return fmt.Errorf("remote: decode: %w", err)
		}
		if pr.Value == nil {
			return errors.New("remote: response has no value")
		}
		out = *pr.Value
		return nil
	})
	return out, err
}
