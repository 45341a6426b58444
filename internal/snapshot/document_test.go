package snapshot

import (
	"os"
	"strings"
	"testing"

	"governance-unlocks/internal/governance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *Snapshot {
	t.Helper()
	f, err := os.Open("testdata/alice.json")
	require.NoError(t, err)
	defer f.Close()
	snap, err := Decode(f)
	require.NoError(t, err)
	return snap
}

func TestDecode(t *testing.T) {
	snap := loadFixture(t)

	assert.Equal(t, "alice", snap.Account)
	assert.Equal(t, governance.BlockNumber(1500), snap.CurrentBlock)
	require.Len(t, snap.TracksVoting.Votes.Votes, 4)

	v := snap.TracksVoting.Votes.Votes[10]
	assert.Equal(t, governance.TrackID(0), v.Track)
	std, ok := v.Vote.(governance.Standard)
	require.True(t, ok)
	assert.True(t, std.Aye)
	assert.Equal(t, governance.ConvictionLocked1x, std.Lock)
	assert.True(t, std.Balance.Equal(governance.NewBalance(1000)))

	split := snap.TracksVoting.Votes.Votes[11].Vote
	assert.True(t, split.TotalBalance().Equal(governance.NewBalance(300)))

	d := snap.TracksVoting.Votes.Delegatings[2]
	assert.Equal(t, "bob", d.Target)
	assert.Equal(t, governance.ConvictionLocked3x, d.Conviction)
	assert.Equal(t, governance.BlockNumber(900), d.Prior.UnlockAt)

	assert.Equal(t, governance.Ongoing{Track: 1, Submitted: 500, Deciding: &governance.Deciding{Since: 800}}, snap.Referendums[20])
	assert.Equal(t, governance.Killed{Since: 1100}, snap.Referendums[11])
	assert.Equal(t, governance.Unknown{}, snap.Referendums[21])

	assert.Equal(t, governance.BlockNumber(100), snap.Info.VoteLockingPeriod)
	assert.Equal(t, "treasurer", snap.Info.Tracks[1].Name)
}

func TestDecodedSnapshotSchedule(t *testing.T) {
	snap := loadFixture(t)

	s := governance.NewCalculator().CreateUnlocksSchedule(snap.TracksVoting, snap.Referendums, snap.Info)
	require.Len(t, s.Items, 3)

	want := []governance.ScheduleItem{
		{
			Amount:   governance.NewBalance(200),
			UnlockAt: 0,
			Actions:  governance.NewActionSet(governance.UnvoteAction(0, 11), governance.UnlockAction(0)),
		},
		{
			Amount:   governance.NewBalance(600),
			UnlockAt: 1100,
			Actions: governance.NewActionSet(
				governance.UnvoteAction(0, 10), governance.UnlockAction(0), governance.UnlockAction(2),
			),
		},
		{
			Amount:   governance.NewBalance(400),
			UnlockAt: 3000,
			Actions:  governance.NewActionSet(governance.UnvoteAction(1, 20), governance.UnlockAction(1)),
		},
	}
	for i := range want {
		assert.True(t, want[i].Equal(s.Items[i]), "item %d: want %s got %s", i, want[i], s.Items[i])
	}

	claim := s.ClaimSchedule(snap.CurrentBlock)
	assert.True(t, claim.TotalClaimable().Equal(governance.NewBalance(800)))
	assert.True(t, claim.TotalPending().Equal(governance.NewBalance(400)))
}

func TestDecodeErrors(t *testing.T) {
	tests := map[string]string{
		"bad json":        `{`,
		"unknown field":   `{"acount": "x"}`,
		"bad amount":      `{"tracks_voting": {"track_locks": [{"track": 1, "amount": "1.5"}]}}`,
		"numeric amount":  `{"tracks_voting": {"track_locks": [{"track": 1, "amount": 15}]}}`,
		"bad conviction":  `{"tracks_voting": {"votes": [{"track": 1, "referendum": 2, "vote": {"conviction": "locked9x"}}]}}`,
		"bad vote type":   `{"tracks_voting": {"votes": [{"track": 1, "referendum": 2, "vote": {"type": "weird"}}]}}`,
		"duplicate vote":  `{"tracks_voting": {"votes": [{"track": 1, "referendum": 2, "vote": {}}, {"track": 3, "referendum": 2, "vote": {}}]}}`,
		"duplicate prior": `{"tracks_voting": {"priors": [{"track": 1}, {"track": 1}]}}`,
		"duplicate ref":   `{"referendums": [{"id": 1, "status": "killed"}, {"id": 1, "status": "approved"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestUnrecognizedStatusIsUnknown(t *testing.T) {
	snap, err := Decode(strings.NewReader(`{"referendums": [{"id": 3, "status": "exploded"}]}`))
	require.NoError(t, err)
	assert.Equal(t, governance.Unknown{}, snap.Referendums[3])
}
