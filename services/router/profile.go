package router

import (
	"sync"
	"time"

	"github.com/AleutianAI/AleutianIntegrity/services/provider"
)

// qualityAlpha is the EWMA smoothing factor for the quality score and
// latency estimates. Small enough to ride out one bad call, large
// enough that a degrading backend loses its rank within a dozen calls.
const qualityAlpha = 0.2

// BackendProfile is a snapshot of one backend's observed behavior.
type BackendProfile struct {
	Backend provider.BackendID `json:"backend"`

	// QualityScore is an EWMA in [0,1]: successful exchanges blend in
	// the analyzer's quality reading, failures decay toward 0. New
	// backends start at a neutral 0.5.
	QualityScore float64 `json:"quality_score"`

	// AvgLatencyMs is an EWMA over successful-call latency.
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	TotalCalls    int64     `json:"total_calls"`
	TotalFailures int64     `json:"total_failures"`
	TotalCostUSD  float64   `json:"total_cost_usd"`
	LastUsed      time.Time `json:"last_used"`
}

// ProfileStore accumulates per-backend call statistics.
//
// # Thread Safety
//
// ProfileStore is safe for concurrent use. All reads return copies so
// callers never observe a profile mid-update.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[provider.BackendID]*BackendProfile
	now      func() time.Time
}

// NewProfileStore creates an empty store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[provider.BackendID]*BackendProfile),
		now:      time.Now,
	}
}

func (s *ProfileStore) get(backend provider.BackendID) *BackendProfile {
	p, ok := s.profiles[backend]
	if !ok {
		p = &BackendProfile{Backend: backend, QualityScore: 0.5}
		s.profiles[backend] = p
	}
	return p
}

// ObserveSuccess folds a successful completion's latency and cost into
// the profile. The quality score is untouched here; it moves only when
// a quality reading arrives through ObserveQuality or a failure decays
// it.
func (s *ProfileStore) ObserveSuccess(backend provider.BackendID, latency time.Duration, costUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.get(backend)
	p.TotalCalls++
	p.TotalCostUSD += costUSD
	p.LastUsed = s.now()

	ms := float64(latency.Milliseconds())
	if p.AvgLatencyMs == 0 {
		p.AvgLatencyMs = ms
	} else {
		p.AvgLatencyMs = p.AvgLatencyMs*(1-qualityAlpha) + ms*qualityAlpha
	}
}

// ObserveQuality blends one quality reading for a successful exchange
// into the backend's EWMA quality score. Readings outside [0,1] are
// clamped, so the score itself can never leave the band.
func (s *ProfileStore) ObserveQuality(backend provider.BackendID, quality float64) {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.get(backend)
	p.QualityScore = p.QualityScore*(1-qualityAlpha) + quality*qualityAlpha
}

// ObserveFailure folds a failed call into the profile.
func (s *ProfileStore) ObserveFailure(backend provider.BackendID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.get(backend)
	p.TotalCalls++
	p.TotalFailures++
	p.LastUsed = s.now()
	p.QualityScore = p.QualityScore * (1 - qualityAlpha)
}

// Snapshot returns a copy of one backend's profile. The second return
// is false if the backend has never been observed.
func (s *ProfileStore) Snapshot(backend provider.BackendID) (BackendProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[backend]
	if !ok {
		return BackendProfile{}, false
	}
	return *p, true
}

// SnapshotAll returns copies of every observed profile.
func (s *ProfileStore) SnapshotAll() []BackendProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]BackendProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		result = append(result, *p)
	}
	return result
}
