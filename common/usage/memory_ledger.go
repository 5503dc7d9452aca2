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
	"sync"
	"time"

	"github.com/google/uuid"
)

type meterKey struct {
	subjectID string
	monthKey  string
}

// MemoryLedger is an in-process Ledger used when no database is configured
type MemoryLedger struct {
	mu       sync.Mutex
	meters   map[meterKey]*Meter
	trials   map[string]*Trial
	provider []ProviderUsage
	now      func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		meters: make(map[meterKey]*Meter),
		trials: make(map[string]*Trial),
		now:    time.Now,
	}
}

// GetMeter returns a copy of the meter, or a zero meter
func (l *MemoryLedger) GetMeter(_ context.Context, subjectID, monthKey string) (*Meter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.meters[meterKey{subjectID, monthKey}]; ok {
		cp := *m
		return &cp, nil
	}
	return &Meter{SubjectID: subjectID, MonthKey: monthKey}, nil
}

// Increment adds n to the counter for kind
func (l *MemoryLedger) Increment(_ context.Context, subjectID, monthKey string, kind Kind, n int) (*Meter, error) {
	if err := validateIncrement(kind, n); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	key := meterKey{subjectID, monthKey}
	m, ok := l.meters[key]
	if !ok {
		m = &Meter{SubjectID: subjectID, MonthKey: monthKey, CreatedAt: now}
		l.meters[key] = m
	}
	m.add(kind, n)
	m.UpdatedAt = now

	cp := *m
	return &cp, nil
}

// AppendProviderUsage appends a provider usage record
func (l *MemoryLedger) AppendProviderUsage(_ context.Context, rec *ProviderUsage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	l.provider = append(l.provider, *rec)
	return nil
}

// ProviderUsage returns a snapshot of the provider usage log
func (l *MemoryLedger) ProviderUsage() []ProviderUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ProviderUsage, len(l.provider))
	copy(out, l.provider)
	return out
}

// GetTrial returns the subject's trial
func (l *MemoryLedger) GetTrial(_ context.Context, subjectID string) (*Trial, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.trials[subjectID]
	if !ok {
		return nil, ErrTrialNotFound
	}
	cp := *t
	return &cp, nil
}

// StartTrial creates or replaces the subject's trial
func (l *MemoryLedger) StartTrial(_ context.Context, subjectID string, start time.Time, duration time.Duration) (*Trial, error) {
	t, err := newTrial(subjectID, start, duration)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.trials[subjectID] = t

	cp := *t
	return &cp, nil
}

// Ping always succeeds
func (l *MemoryLedger) Ping(context.Context) error {
	return nil
}

var (
	_ Ledger = (*PostgresLedger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)
