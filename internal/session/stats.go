package session

import (
	"github.com/montanaflynn/stats"
)

// SessionStats breaks query counts down for one session
type SessionStats struct {
	Queries    int `json:"queries"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Rejected   int `json:"rejected"`
}

// Overview aggregates query counts and latency over every stored session
type Overview struct {
	TotalQueries      int                     `json:"total_queries"`
	SuccessfulQueries int                     `json:"successful_queries"`
	FailedQueries     int                     `json:"failed_queries"`
	RejectedQueries   int                     `json:"rejected_queries"`
	AvgLatencyMs      float64                 `json:"avg_latency_ms"`
	MedianLatencyMs   float64                 `json:"median_latency_ms"`
	PerSession        map[string]SessionStats `json:"per_session"`
}

// tracker maintains running counters so Stats is O(1) per call instead of a
// scan over every turn. Deleting or importing sessions invalidates it; the
// next Stats call rebuilds from the surviving history.
type tracker struct {
	valid      bool
	total      int
	successful int
	failed     int
	rejected   int
	latencies  []float64
	perSession map[string]SessionStats
}

func newTracker() tracker {
	return tracker{
		valid:      true,
		perSession: make(map[string]SessionStats),
	}
}

func (t *tracker) addSession(id string) {
	if !t.valid {
		return
	}
	t.perSession[id] = SessionStats{}
}

func (t *tracker) observe(sessionID string, turn *Turn) {
	if !t.valid {
		return
	}
	per := t.perSession[sessionID]
	t.total++
	per.Queries++
	switch {
	case turn.Result != nil:
		t.successful++
		per.Successful++
		t.latencies = append(t.latencies, float64(turn.Result.ElapsedMs))
	case turn.ExecError != nil:
		t.failed++
		per.Failed++
	case turn.Rejection != nil:
		t.rejected++
		per.Rejected++
	}
	t.perSession[sessionID] = per
}

func (t *tracker) invalidate() {
	t.valid = false
}

func (t *tracker) overview() Overview {
	out := Overview{
		TotalQueries:      t.total,
		SuccessfulQueries: t.successful,
		FailedQueries:     t.failed,
		RejectedQueries:   t.rejected,
		PerSession:        make(map[string]SessionStats, len(t.perSession)),
	}
	for id, per := range t.perSession {
		out.PerSession[id] = per
	}
	if len(t.latencies) > 0 {
		if mean, err := stats.Mean(t.latencies); err == nil {
			out.AvgLatencyMs = mean
		}
		if median, err := stats.Median(t.latencies); err == nil {
			out.MedianLatencyMs = median
		}
	}
	return out
}

// Stats returns aggregate counters over all sessions. Counters are kept
// incrementally on append and rebuilt lazily after a delete or import, so
// the two paths always agree.
func (s *Store) Stats() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.valid {
		s.tracker = s.rebuildTracker()
	}
	return s.tracker.overview()
}

// RecomputeStats ignores the incremental counters and recounts from the
// stored turns directly
func (s *Store) RecomputeStats() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.rebuildTracker()
	return t.overview()
}

func (s *Store) rebuildTracker() tracker {
	t := newTracker()
	for _, id := range s.order {
		t.addSession(id)
		sess := s.sessions[id]
		for i := range sess.Turns {
			t.observe(id, &sess.Turns[i])
		}
	}
	return t
}
