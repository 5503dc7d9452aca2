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

package flights

import (
	"context"
	"sort"
	"sync"
	"time"
)

type segmentKey struct {
	tripID, carrier, number string
}

// MemoryStore keeps segments in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	segments map[segmentKey]Segment
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		segments: make(map[segmentKey]Segment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Upsert(_ context.Context, seg *Segment) (*Segment, error) {
	if err := seg.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := segmentKey{seg.TripID, seg.Carrier, seg.Number}
	now := s.now()
	stored := *seg
	stored.CreatedAt = now
	if existing, ok := s.segments[key]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.UpdatedAt = now
	s.segments[key] = stored
	return &stored, nil
}

func (s *MemoryStore) CountByTrip(_ context.Context, tripID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.segments {
		if k.tripID == tripID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByTrip(_ context.Context, tripID string) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Segment{}
	for k, seg := range s.segments {
		if k.tripID == tripID {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ScheduledDeparture != b.ScheduledDeparture {
			return a.ScheduledDeparture < b.ScheduledDeparture
		}
		if a.Carrier != b.Carrier {
			return a.Carrier < b.Carrier
		}
		return a.Number < b.Number
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
