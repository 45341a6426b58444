// Package tracks resolves referendum track metadata (names and decision
// periods) from a governance metadata API.
package tracks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/logger"
)

// retryInterval bounds how often a failing track API is retried.
const retryInterval = time.Minute

// Resolver fetches and caches the track table served by
// GET <base>/governance/tracks.
type Resolver struct {
	baseURL   string
	mu        sync.RWMutex
	cache     map[governance.TrackID]governance.TrackInfo
	lastFetch time.Time
	lastFail  time.Time
	ttl       time.Duration
	retry     time.Duration
	client    *http.Client
	log       *logger.Logger
}

// NewResolver returns nil when baseURL is empty. A nil Resolver is valid
// and resolves nothing.
func NewResolver(baseURL string, ttl time.Duration, log *logger.Logger) *Resolver {
	if baseURL == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute // Tracks change only with a runtime upgrade
	}
	if log == nil {
		log = logger.Nop()
	}
	retry := retryInterval
	if ttl < retry {
		retry = ttl
	}
	return &Resolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cache:   map[governance.TrackID]governance.TrackInfo{},
		ttl:     ttl,
		retry:   retry,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Name returns the track name or "" when unknown.
func (r *Resolver) Name(track governance.TrackID) string {
	if r == nil {
		return ""
	}
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[track].Name
}

// Info returns a copy of the cached track table.
func (r *Resolver) Info() map[governance.TrackID]governance.TrackInfo {
	if r == nil {
		return nil
	}
	r.ensureFresh()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[governance.TrackID]governance.TrackInfo, len(r.cache))
	for id, t := range r.cache {
		out[id] = t
	}
	return out
}

// Fill adds the tracks missing from info. Tracks already present win.
// info.Tracks is replaced by a merged copy, the caller's map is never
// written.
func (r *Resolver) Fill(info *governance.UnlockCalculationInfo) {
	if r == nil || info == nil {
		return
	}
	known := r.Info()
	if len(known) == 0 {
		return
	}
	for id, t := range info.Tracks {
		known[id] = t
	}
	info.Tracks = known
}

func (r *Resolver) ensureFresh() {
	r.mu.RLock()
	due := r.due()
	r.mu.RUnlock()

	if due {
		r.refresh()
	}
}

// due reports whether a fetch should be attempted. Callers hold mu.
func (r *Resolver) due() bool {
	if time.Since(r.lastFetch) <= r.ttl && len(r.cache) > 0 {
		return false
	}
	return r.lastFail.IsZero() || time.Since(r.lastFail) >= r.retry
}

func (r *Resolver) refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check under lock
	if !r.due() {
		return
	}

	tracks, err := r.fetchTracks()
	if err != nil {
		r.lastFail = time.Now()
		r.log.Printf("tracks resolver: failed to fetch tracks, retrying in %s: %v", r.retry, err)
		return
	}
	r.lastFail = time.Time{}

	mapping := make(map[governance.TrackID]governance.TrackInfo, len(tracks))
	for _, t := range tracks {
		mapping[governance.TrackID(t.ID)] = governance.TrackInfo{
			Name:           t.Name,
			DecisionPeriod: governance.BlockNumber(t.DecisionPeriod),
		}
	}
	r.cache = mapping
	r.lastFetch = time.Now()
	r.log.Printf("tracks resolver: cached %d tracks", len(mapping))
}

type trackEntry struct {
	ID             uint16 `json:"id"`
	Name           string `json:"name"`
	DecisionPeriod uint32 `json:"decision_period"`
}

type tracksResp struct {
	Tracks []trackEntry `json:"tracks"`
}

func (r *Resolver) fetchTracks() ([]trackEntry, error) {
	resp, err := r.client.Get(r.baseURL + "/governance/tracks")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload tracksResp
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Tracks, nil
}
