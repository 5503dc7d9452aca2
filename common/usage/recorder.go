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

package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"tripcount/platform/shared/logger"
)

// Event is one metered action to be recorded after it succeeded
type Event struct {
	SubjectID string
	RequestID string
	// Kind may be empty when only the provider log is written
	Kind  Kind
	Count int

	// Provider may be empty when no upstream call was made
	Provider  string
	Endpoint  string
	Units     int
	CostCents int
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithErrorHook is called for every failed record, after it is logged
func WithErrorHook(fn func(Event, error)) RecorderOption {
	return func(r *Recorder) { r.onError = fn }
}

// WithRecordTimeout bounds the detached write
func WithRecordTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.timeout = d }
}

// WithClock overrides the clock used to pick the month bucket
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// Recorder writes usage without ever failing the caller
type Recorder struct {
	ledger  Ledger
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
	onError func(Event, error)
	wg      sync.WaitGroup
}

// NewRecorder creates a best-effort recorder over ledger
func NewRecorder(ledger Ledger, log *logger.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ledger:  ledger,
		log:     log,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes ev in the background. The request context's cancellation is
// not inherited so a client disconnect does not drop the write.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	monthKey := MonthKey(r.now())
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		wctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		if err := r.write(wctx, monthKey, ev); err != nil {
			r.fail(ev, err)
		}
	}()
}

// RecordSync writes ev on the calling goroutine and returns the error
func (r *Recorder) RecordSync(ctx context.Context, ev Event) error {
	err := r.write(ctx, MonthKey(r.now()), ev)
	if err != nil {
		r.fail(ev, err)
	}
	return err
}

// Wait blocks until every background write has finished
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) write(ctx context.Context, monthKey string, ev Event) error {
	var errs []error

	if ev.Kind != "" {
		count := ev.Count
		if count == 0 {
			count = 1
		}
		if _, err := r.ledger.Increment(ctx, ev.SubjectID, monthKey, ev.Kind, count); err != nil {
			errs = append(errs, err)
		}
	}

	if ev.Provider != "" {
		rec := &ProviderUsage{
			Provider:  ev.Provider,
			Endpoint:  ev.Endpoint,
			Units:     ev.Units,
			CostCents: ev.CostCents,
			SubjectID: ev.SubjectID,
		}
		if err := r.ledger.AppendProviderUsage(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Recorder) fail(ev Event, err error) {
	r.log.Error(ev.SubjectID, ev.RequestID, "failed to record usage", map[string]interface{}{
		"kind":     string(ev.Kind),
		"provider": ev.Provider,
		"endpoint": ev.Endpoint,
		"error":    err.Error(),
	})
	if r.onError != nil {
		r.onError(ev, err)
	}
}
