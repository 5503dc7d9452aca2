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

package aviation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	name       string
	configured bool
	flight     *Flight
	err        error
	calls      int
}

func (s *stubLookup) Name() string       { return s.name }
func (s *stubLookup) IsConfigured() bool { return s.configured }
func (s *stubLookup) FlightByNumber(context.Context, string, string, string) (*Flight, error) {
	s.calls++
	return s.flight, s.err
}

func TestFlightResolver(t *testing.T) {
	ctx := context.Background()
	found := &Flight{Carrier: "BA", Number: "178"}

	t.Run("primary answers", func(t *testing.T) {
		p := &stubLookup{configured: true, flight: found}
		s := &stubLookup{configured: true, flight: found}
		f, err := NewFlightResolver(p, s).Resolve(ctx, "BA", "178", "2025-05-01")
		require.NoError(t, err)
		assert.Equal(t, found, f)
		assert.Zero(t, s.calls)
	})

	t.Run("not found is final", func(t *testing.T) {
		p := &stubLookup{configured: true, err: ErrNotFound}
		s := &stubLookup{configured: true, flight: found}
		_, err := NewFlightResolver(p, s).Resolve(ctx, "BA", "178", "2025-05-01")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, s.calls)
	})

	t.Run("failure falls back", func(t *testing.T) {
		p := &stubLookup{configured: true, err: &UpstreamError{Source: "p", StatusCode: 503}}
		s := &stubLookup{configured: true, flight: found}
		f, err := NewFlightResolver(p, s).Resolve(ctx, "BA", "178", "2025-05-01")
		require.NoError(t, err)
		assert.Equal(t, found, f)
	})

	t.Run("unconfigured skipped", func(t *testing.T) {
		p := &stubLookup{}
		s := &stubLookup{configured: true, flight: found}
		r := NewFlightResolver(p, s)
		assert.True(t, r.IsConfigured())
		_, err := r.Resolve(ctx, "BA", "178", "2025-05-01")
		require.NoError(t, err)
		assert.Zero(t, p.calls)
	})

	t.Run("nothing configured", func(t *testing.T) {
		r := NewFlightResolver(&stubLookup{})
		assert.False(t, r.IsConfigured())
		_, err := r.Resolve(ctx, "BA", "178", "2025-05-01")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("all fail", func(t *testing.T) {
		p := &stubLookup{configured: true, err: errors.New("p down")}
		s := &stubLookup{configured: true, err: errors.New("s down")}
		_, err := NewFlightResolver(p, s).Resolve(ctx, "BA", "178", "2025-05-01")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "s down")
	})
}

func TestRouteSearcher_PrefersAviationStack(t *testing.T) {
	var stackCalls, adbCalls int32
	stackSrv := stackServer(t, &stackCalls, stackJSON)
	adbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&adbCalls, 1)
		_, _ = w.Write([]byte(adbBoardJSON))
	}))
	defer adbSrv.Close()

	s := NewRouteSearcher(
		NewAviationStack("stack-key", stackSrv.URL, time.Second, 10, time.Hour),
		NewAeroDataBox("rapid", "", time.Second).WithBaseURL(adbSrv.URL),
	)

	res, err := s.Search(context.Background(), "LHR", "JFK", "2025-05-01", 10)
	require.NoError(t, err)
	assert.Equal(t, SourceAviationStack, res.Source)
	assert.False(t, res.Cached)
	assert.Zero(t, atomic.LoadInt32(&adbCalls))

	res, err = s.Search(context.Background(), "LHR", "JFK", "2025-05-01", 10)
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

func TestRouteSearcher_FallsBackToAeroDataBox(t *testing.T) {
	stackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer stackSrv.Close()
	adbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(adbBoardJSON))
	}))
	defer adbSrv.Close()

	s := NewRouteSearcher(
		NewAviationStack("stack-key", stackSrv.URL, time.Second, 10, time.Hour),
		NewAeroDataBox("rapid", "", time.Second).WithBaseURL(adbSrv.URL),
	)

	res, err := s.Search(context.Background(), "LHR", "JFK", "2025-05-01", 10)
	require.NoError(t, err)
	assert.Equal(t, SourceAeroDataBox, res.Source)
	// both halves of the day return the same board
	assert.Len(t, res.Flights, 2)
}

func TestRouteSearcher_NotConfigured(t *testing.T) {
	s := NewRouteSearcher(NewAviationStack("", "", time.Second, 1, time.Hour), nil)
	assert.False(t, s.IsConfigured())
	_, err := s.Search(context.Background(), "LHR", "JFK", "2025-05-01", 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
