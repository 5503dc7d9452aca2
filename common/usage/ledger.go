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
	"time"
)

var (
	// ErrTrialNotFound is returned when a subject never had a trial
	ErrTrialNotFound = errors.New("trial not found")
	// ErrInvalidIncrement is returned for non-positive increments or unknown kinds
	ErrInvalidIncrement = errors.New("invalid usage increment")
	// ErrInvalidTrial is returned when a trial would end before it starts
	ErrInvalidTrial = errors.New("trial ends before it starts")
)

// MeterReader is the read side of the ledger used by entitlement checks
type MeterReader interface {
	// GetMeter returns the meter for subject and month. A missing row is
	// returned as a zero meter, not an error.
	GetMeter(ctx context.Context, subjectID, monthKey string) (*Meter, error)
}

// TrialReader resolves a subject's trial
type TrialReader interface {
	GetTrial(ctx context.Context, subjectID string) (*Trial, error)
}

// Ledger is the persistent store behind usage metering
type Ledger interface {
	MeterReader
	TrialReader

	// Increment atomically adds n to one counter, creating the row when absent
	Increment(ctx context.Context, subjectID, monthKey string, kind Kind, n int) (*Meter, error)

	// AppendProviderUsage appends one upstream call record
	AppendProviderUsage(ctx context.Context, rec *ProviderUsage) error

	// StartTrial creates or replaces the subject's trial
	StartTrial(ctx context.Context, subjectID string, start time.Time, duration time.Duration) (*Trial, error)

	// Ping checks the backing store
	Ping(ctx context.Context) error
}

func validateIncrement(kind Kind, n int) error {
	if !kind.Valid() || n <= 0 {
		return ErrInvalidIncrement
	}
	return nil
}

func newTrial(subjectID string, start time.Time, duration time.Duration) (*Trial, error) {
	if duration < 0 {
		return nil, ErrInvalidTrial
	}
	return &Trial{
		SubjectID: subjectID,
		StartedAt: start.UTC(),
		EndsAt:    start.UTC().Add(duration),
	}, nil
}
