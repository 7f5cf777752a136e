package board

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/board/internal/models"
)

// SetEstimate sets the original estimate in hours. Nil removes it.
func (s *Service) SetEstimate(ctx context.Context, id string, hours *float64) (*models.Issue, error) {
	p := Patch{Estimate: hours, ClearEstimate: hours == nil}
	return s.update(ctx, "set_estimate", id, p)
}

// LogTime adds spent hours to the logged total and sets remaining outright.
func (s *Service) LogTime(ctx context.Context, id string, spent, remaining float64) (*models.Issue, error) {
	const op = "log_time"
	start := time.Now()

	var errs ValidationErrors
	if verr := checkHours("timeSpent", spent); verr != nil {
		errs = append(errs, verr)
	}
	if verr := checkHours("timeRemaining", remaining); verr != nil {
		errs = append(errs, verr)
	}
	if err := errs.err(); err != nil {
		s.record(op, start, err)
		return nil, err
	}
	return s.mutate(ctx, op, id, func(issue *models.Issue) error {
		issue.TimeLogged += spent
		issue.TimeRemaining = remaining
		return nil
	})
}

// SetTracking sets logged and remaining hours absolutely.
func (s *Service) SetTracking(ctx context.Context, id string, logged, remaining float64) (*models.Issue, error) {
	return s.update(ctx, "set_tracking", id, Patch{TimeLogged: &logged, TimeRemaining: &remaining})
}

// ParseHours reads an hours field as typed. Empty text clears the value
// (nil, nil). Non-numeric or negative text is a ValidationError.
func ParseHours(field, text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, invalid(field, "must be a number")
	}
	if verr := checkHours(field, v); verr != nil {
		return nil, verr
	}
	return &v, nil
}

func checkHours(field string, v float64) *ValidationError {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a number")
	}
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

// Progress is the derived time-tracking display for an issue.
type Progress struct {
	HasEstimate bool    `json:"hasEstimate"`
	Percent     int     `json:"percent"`
	Logged      float64 `json:"logged"`
	Remaining   float64 `json:"remaining"`
	Estimate    float64 `json:"estimate,omitempty"`
}

// ProgressOf computes progress against the estimate, capped at 100.
// A missing or zero estimate yields no percentage.
func ProgressOf(issue *models.Issue) Progress {
	p := Progress{Logged: issue.TimeLogged, Remaining: issue.TimeRemaining}
	if issue.Estimate == nil || *issue.Estimate <= 0 {
		return p
	}
	p.HasEstimate = true
	p.Estimate = *issue.Estimate
	p.Percent = int(math.Min(100, math.Round(100*issue.TimeLogged/p.Estimate)))
	return p
}

// LoggedLabel is "No time logged" or "<n>h logged".
func (p Progress) LoggedLabel() string {
	if p.Logged <= 0 {
		return "No time logged"
	}
	return formatHours(p.Logged) + " logged"
}

// RemainingLabel is "<n>h remaining", "<n>h estimated", or "" when neither applies.
func (p Progress) RemainingLabel() string {
	switch {
	case p.Remaining > 0:
		return formatHours(p.Remaining) + " remaining"
	case p.HasEstimate:
		return formatHours(p.Estimate) + " estimated"
	}
	return ""
}

// Summary joins both labels for single-line output.
func (p Progress) Summary() string {
	if r := p.RemainingLabel(); r != "" {
		return p.LoggedLabel() + ", " + r
	}
	return p.LoggedLabel()
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}
