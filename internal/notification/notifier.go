// Package notification delivers sweep alerts to external channels
// (Telegram, webhooks) or the process log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"marketlens/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to every backend and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retrying retries a backend up to Attempts times with linear backoff.
type Retrying struct {
	Notifier Notifier
	Attempts int
	Backoff  time.Duration
}

func (r Retrying) Send(ctx context.Context, alert Alert) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = r.Notifier.Send(ctx, alert); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Backoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// SweepAlert summarizes a sweep run. Symbols whose confidence is at least
// threshold are listed, strongest first. ok is false when there is nothing
// worth sending: no flagged symbol and no failures.
func SweepAlert(run model.SweepRun, threshold float64) (alert Alert, ok bool) {
	var flagged []model.SweepResult
	for _, r := range run.Results {
		if r.Error == "" && r.Verdict.Confidence >= threshold {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) == 0 && run.Failures == 0 {
		return Alert{}, false
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].Verdict.Confidence > flagged[j].Verdict.Confidence
	})

	var b strings.Builder
	for _, r := range flagged {
		fmt.Fprintf(&b, "%s: short %s, mid %s, long %s (%.2f%%)\n",
			r.Symbol, r.Verdict.ShortTerm, r.Verdict.MidTerm, r.Verdict.LongTerm, r.Verdict.Confidence)
	}

	level := AlertInfo
	if run.Failures > 0 {
		level = AlertWarning
		fmt.Fprintf(&b, "%d of %d symbols failed", run.Failures, len(run.Results))
	}
	if len(run.Results) > 0 && run.Failures == len(run.Results) {
		level = AlertCritical
	}

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("Trend sweep: %d strong signals", len(flagged)),
		Message: strings.TrimSpace(b.String()),
		Fields: map[string]string{
			"symbols":  fmt.Sprint(len(run.Results)),
			"failures": fmt.Sprint(run.Failures),
			"finished": run.FinishedAt.Format(time.RFC3339),
		},
	}, true
}
