package tracks

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"governance-unlocks/internal/governance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tracksBody = `{"tracks":[
	{"id":0,"name":"root","decision_period":201600},
	{"id":33,"name":"medium_spender","decision_period":403200}
]}`

func newTracksServer(t *testing.T, hits *int32, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/governance/tracks" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(tracksBody))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestResolverCachesTracks(t *testing.T) {
	var hits int32
	ts := newTracksServer(t, &hits, http.StatusOK)
	r := NewResolver(ts.URL+"/", time.Hour, nil)

	assert.Equal(t, "root", r.Name(0))
	assert.Equal(t, "medium_spender", r.Name(33))
	assert.Equal(t, "", r.Name(7))

	info := r.Info()
	require.Len(t, info, 2)
	assert.Equal(t, governance.BlockNumber(403200), info[33].DecisionPeriod)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolverRefetchesWhenStale(t *testing.T) {
	var hits int32
	ts := newTracksServer(t, &hits, http.StatusOK)
	r := NewResolver(ts.URL, time.Hour, nil)

	r.Name(0)
	r.mu.Lock()
	r.lastFetch = time.Now().Add(-2 * time.Hour)
	r.mu.Unlock()
	r.Name(0)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestResolverFailureKeepsEmpty(t *testing.T) {
	var hits int32
	ts := newTracksServer(t, &hits, http.StatusInternalServerError)
	r := NewResolver(ts.URL, time.Hour, nil)

	assert.Empty(t, r.Info())
	assert.Equal(t, "", r.Name(0))
}

func TestResolverBacksOffAfterFailure(t *testing.T) {
	var hits int32
	ts := newTracksServer(t, &hits, http.StatusServiceUnavailable)
	r := NewResolver(ts.URL, time.Hour, nil)

	r.Info()
	r.Name(0)
	r.Fill(&governance.UnlockCalculationInfo{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	r.mu.Lock()
	r.lastFail = time.Now().Add(-2 * retryInterval)
	r.mu.Unlock()
	r.Info()
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFillKeepsSnapshotTracks(t *testing.T) {
	var hits int32
	ts := newTracksServer(t, &hits, http.StatusOK)
	r := NewResolver(ts.URL, time.Hour, nil)

	own := map[governance.TrackID]governance.TrackInfo{
		0: {Name: "root", DecisionPeriod: 10},
	}
	info := governance.UnlockCalculationInfo{Tracks: own}
	r.Fill(&info)

	assert.Equal(t, governance.BlockNumber(10), info.Tracks[0].DecisionPeriod)
	assert.Equal(t, governance.BlockNumber(403200), info.Tracks[33].DecisionPeriod)
	assert.Len(t, own, 1, "caller's map must not be written")

	empty := governance.UnlockCalculationInfo{}
	r.Fill(&empty)
	assert.Len(t, empty.Tracks, 2)
}

func TestNilResolver(t *testing.T) {
	r := NewResolver("", 0, nil)
	assert.Nil(t, r)
	assert.Equal(t, "", r.Name(1))
	assert.Nil(t, r.Info())

	info := governance.UnlockCalculationInfo{}
	r.Fill(&info)
	assert.Nil(t, info.Tracks)
}
