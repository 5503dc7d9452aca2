// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tripcount/platform/common/usage"
	"tripcount/platform/shared/logger"
)

// ErrTripRequired is returned when a per-trip limit applies but no trip was named
var ErrTripRequired = errors.New("tripId is required for the current plan")

// ProSource answers whether a subject holds an active paid subscription
type ProSource interface {
	HasActivePro(ctx context.Context, subjectID string) (bool, error)
}

// NoProSource is the default ProSource: nobody is pro until billing is wired.
type NoProSource struct{}

// HasActivePro always returns false
func (NoProSource) HasActivePro(context.Context, string) (bool, error) {
	return false, nil
}

// SegmentCounter counts the flight segments already attached to a trip
type SegmentCounter interface {
	CountByTrip(ctx context.Context, tripID string) (int, error)
}

// UsageCheck is the outcome of a monthly limit check
type UsageCheck struct {
	Kind    usage.Kind `json:"kind"`
	Allowed bool       `json:"allowed"`
	Current int        `json:"current"`
	Limit   Limit      `json:"limit"`
}

// LimitError describes a denied action
type LimitError struct {
	Kind    LimitKind
	Plan    Plan
	Current int
	Limit   Limit
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit reached on %s plan (%d/%s)", e.Kind, e.Plan, e.Current, e.Limit)
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithProSource replaces the default NoProSource
func WithProSource(p ProSource) EvaluatorOption {
	return func(e *Evaluator) { e.pro = p }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// Evaluator resolves plans and checks limits
type Evaluator struct {
	trials   usage.TrialReader
	meters   usage.MeterReader
	segments SegmentCounter
	pro      ProSource
	log      *logger.Logger
	now      func() time.Time
}

// NewEvaluator creates an evaluator over the given readers
func NewEvaluator(trials usage.TrialReader, meters usage.MeterReader, segments SegmentCounter, log *logger.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		trials:   trials,
		meters:   meters,
		segments: segments,
		pro:      NoProSource{},
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the evaluator's clock reading
func (e *Evaluator) Now() time.Time {
	return e.now()
}

// GetPlan returns pro, then trial, then free. Any lookup error yields free.
func (e *Evaluator) GetPlan(ctx context.Context, subjectID string) Plan {
	isPro, err := e.pro.HasActivePro(ctx, subjectID)
	if err != nil {
		e.log.Warn(subjectID, "", "pro lookup failed, using free plan", map[string]interface{}{"error": err.Error()})
		return PlanFree
	}
	if isPro {
		return PlanPro
	}

	trial, err := e.trials.GetTrial(ctx, subjectID)
	if errors.Is(err, usage.ErrTrialNotFound) {
		return PlanFree
	}
	if err != nil {
		e.log.Warn(subjectID, "", "trial lookup failed, using free plan", map[string]interface{}{"error": err.Error()})
		return PlanFree
	}
	if trial.Active(e.now()) {
		return PlanTrial
	}
	return PlanFree
}

// CheckMonthlyUsageLimit compares this month's counter to the plan cap
func (e *Evaluator) CheckMonthlyUsageLimit(ctx context.Context, subjectID string, plan Plan, kind usage.Kind) (UsageCheck, error) {
	limitKind := MonthlyLimitKind(kind)
	if limitKind == "" {
		return UsageCheck{}, fmt.Errorf("no monthly limit for %q", kind)
	}

	meter, err := e.meters.GetMeter(ctx, subjectID, usage.MonthKey(e.now()))
	if err != nil {
		return UsageCheck{}, fmt.Errorf("failed to read usage: %w", err)
	}

	limit := ComputeLimit(limitKind, plan)
	current := meter.Count(kind)
	return UsageCheck{
		Kind:    kind,
		Allowed: limit.Allows(current),
		Current: current,
		Limit:   limit,
	}, nil
}

// CheckFlightResolveLimit resolves the plan and applies the per-trip cap
func (e *Evaluator) CheckFlightResolveLimit(ctx context.Context, subjectID, tripID string) (bool, error) {
	return e.CheckFlightResolveLimitForPlan(ctx, e.GetPlan(ctx, subjectID), tripID)
}

// CheckFlightResolveLimitForPlan applies the per-trip cap for an already
// resolved plan. Unlimited plans never touch the segment store.
func (e *Evaluator) CheckFlightResolveLimitForPlan(ctx context.Context, plan Plan, tripID string) (bool, error) {
	limit := ComputeLimit(FlightResolvePerTrip, plan)
	if limit.IsUnlimited() {
		return true, nil
	}
	if tripID == "" {
		return false, ErrTripRequired
	}

	count, err := e.segments.CountByTrip(ctx, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to count trip segments: %w", err)
	}
	return limit.Allows(count), nil
}
