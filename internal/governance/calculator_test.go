package governance

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(amount uint64, at BlockNumber, actions ...Action) ScheduleItem {
	return ScheduleItem{Amount: NewBalance(amount), UnlockAt: at, Actions: NewActionSet(actions...)}
}

func requireSchedule(t *testing.T, want []ScheduleItem, got Schedule) {
	t.Helper()
	require.Len(t, got.Items, len(want), "schedule: %v", got.Items)
	for i := range want {
		assert.True(t, want[i].Equal(got.Items[i]), "item %d: want %s got %s", i, want[i], got.Items[i])
	}
}

func voting(votes map[ReferendumID]ReferendumVote) Voting {
	return Voting{
		Votes:       votes,
		PriorLocks:  map[TrackID]PriorLock{},
		Delegatings: map[TrackID]Delegating{},
	}
}

func TestCreateUnlocksScheduleEmpty(t *testing.T) {
	s := NewCalculator().CreateUnlocksSchedule(TracksVoting{}, nil, testInfo())
	assert.True(t, s.IsEmpty())

	s = NewCalculator().CreateUnlocksSchedule(
		TracksVoting{Votes: voting(nil), TrackLocks: []TrackLock{{Track: 1}}},
		map[ReferendumID]ReferendumInfo{},
		testInfo(),
	)
	assert.True(t, s.IsEmpty())
}

func TestCreateUnlocksScheduleCoveredUnlockMovesActions(t *testing.T) {
	tv := TracksVoting{Votes: voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(50, ConvictionNone)},
		2: {Track: 2, Vote: aye(80, ConvictionNone)},
	})}
	refs := map[ReferendumID]ReferendumInfo{
		1: Approved{Since: 10},
		2: Approved{Since: 20},
	}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{
		item(80, 20, UnvoteAction(1, 1), UnlockAction(1), UnvoteAction(2, 2), UnlockAction(2)),
	}, s)
}

func TestNormalizeUnlocks(t *testing.T) {
	a, b := UnvoteAction(1, 1), UnvoteAction(1, 2)

	got := normalizeUnlocks([]ScheduleItem{item(50, 10, a), item(80, 20, b)})
	requireSchedule(t, []ScheduleItem{item(80, 20, a, b)}, Schedule{Items: got})

	got = normalizeUnlocks([]ScheduleItem{item(30, 100, b), item(100, 50, a)})
	requireSchedule(t, []ScheduleItem{item(70, 50, a), item(30, 100, b)}, Schedule{Items: got})

	// equal amounts: the later unlock covers the earlier one
	got = normalizeUnlocks([]ScheduleItem{item(40, 10, a), item(40, 30, b)})
	requireSchedule(t, []ScheduleItem{item(40, 30, a, b)}, Schedule{Items: got})
}

func TestNormalizeUnlocksKeepsZeroAmountWithActions(t *testing.T) {
	a := UnvoteAction(3, 7)
	got := normalizeUnlocks([]ScheduleItem{item(0, 100, a)})
	requireSchedule(t, []ScheduleItem{item(0, 100, a)}, Schedule{Items: got})

	got = normalizeUnlocks([]ScheduleItem{item(0, 100)})
	assert.Empty(t, got)
}

func TestFlattenUnlocksByBlockNumber(t *testing.T) {
	got := flattenUnlocksByBlockNumber(trackUnlocks{
		1: {item(10, 5, UnlockAction(1)), item(30, 7, UnlockAction(1))},
		2: {item(20, 5, UnlockAction(2))},
	})
	sort.Slice(got, func(i, j int) bool { return got[i].UnlockAt < got[j].UnlockAt })
	requireSchedule(t, []ScheduleItem{
		item(20, 5, UnlockAction(1), UnlockAction(2)),
		item(30, 7, UnlockAction(1)),
	}, Schedule{Items: got})
}

func TestCreateUnlocksScheduleIncrementalAmounts(t *testing.T) {
	tv := TracksVoting{Votes: voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(100, ConvictionNone)},
		2: {Track: 2, Vote: nay(30, ConvictionNone)},
	})}
	refs := map[ReferendumID]ReferendumInfo{
		1: Approved{Since: 50},
		2: Rejected{Since: 100},
	}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{
		item(70, 50, UnvoteAction(1, 1), UnlockAction(1)),
		item(30, 100, UnvoteAction(2, 2), UnlockAction(2)),
	}, s)
	assert.True(t, s.TotalAmount().Equal(NewBalance(100)))
}

func TestCreateUnlocksScheduleVoteNotBeforePrior(t *testing.T) {
	v := voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(50, ConvictionNone)},
	})
	v.PriorLocks[1] = PriorLock{UnlockAt: 500, Amount: NewBalance(20)}
	refs := map[ReferendumID]ReferendumInfo{1: Approved{Since: 100}}

	s := NewCalculator().CreateUnlocksSchedule(TracksVoting{Votes: v}, refs, testInfo())
	requireSchedule(t, []ScheduleItem{
		item(50, 500, UnvoteAction(1, 1), UnlockAction(1)),
	}, s)
}

func TestCreateUnlocksSchedulePriorOnly(t *testing.T) {
	v := voting(nil)
	v.PriorLocks[2] = PriorLock{UnlockAt: 40, Amount: NewBalance(15)}
	v.PriorLocks[3] = PriorLock{UnlockAt: 60}

	s := NewCalculator().CreateUnlocksSchedule(TracksVoting{Votes: v}, nil, testInfo())
	requireSchedule(t, []ScheduleItem{item(15, 40, UnlockAction(2))}, s)
}

func TestCreateUnlocksScheduleDelegationReplacesVotes(t *testing.T) {
	v := voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(50, ConvictionLocked1x)},
		2: {Track: 2, Vote: aye(10, ConvictionNone)},
	})
	v.Delegatings[1] = Delegating{
		Balance:    NewBalance(25),
		Target:     "delegate",
		Conviction: ConvictionLocked1x,
		Prior:      PriorLock{UnlockAt: 700, Amount: NewBalance(30)},
	}
	refs := map[ReferendumID]ReferendumInfo{
		1: Approved{Since: 100},
		2: Approved{Since: 200},
	}

	s := NewCalculator().CreateUnlocksSchedule(TracksVoting{Votes: v}, refs, testInfo())
	requireSchedule(t, []ScheduleItem{
		item(30, 700, UnlockAction(1), UnvoteAction(2, 2), UnlockAction(2)),
	}, s)
}

func TestCreateUnlocksScheduleDelegationWithoutPriorKeepsVotes(t *testing.T) {
	v := voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(50, ConvictionNone)},
	})
	v.Delegatings[1] = Delegating{Balance: NewBalance(5)}
	refs := map[ReferendumID]ReferendumInfo{1: Approved{Since: 100}}

	s := NewCalculator().CreateUnlocksSchedule(TracksVoting{Votes: v}, refs, testInfo())
	requireSchedule(t, []ScheduleItem{item(50, 100, UnvoteAction(1, 1), UnlockAction(1))}, s)
}

func TestCreateUnlocksScheduleTrackLockGap(t *testing.T) {
	tv := TracksVoting{
		Votes: voting(map[ReferendumID]ReferendumVote{
			1: {Track: 1, Vote: aye(100, ConvictionNone)},
		}),
		TrackLocks: []TrackLock{{Track: 1, Amount: NewBalance(150)}},
	}
	refs := map[ReferendumID]ReferendumInfo{1: Approved{Since: 100}}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{
		item(50, 0, UnlockAction(1)),
		item(100, 100, UnvoteAction(1, 1), UnlockAction(1)),
	}, s)
}

func TestCreateUnlocksScheduleTrackLockWithoutGap(t *testing.T) {
	tv := TracksVoting{
		Votes: voting(map[ReferendumID]ReferendumVote{
			1: {Track: 1, Vote: aye(100, ConvictionNone)},
		}),
		TrackLocks: []TrackLock{{Track: 1, Amount: NewBalance(100)}},
	}
	refs := map[ReferendumID]ReferendumInfo{1: Approved{Since: 100}}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{item(100, 100, UnvoteAction(1, 1), UnlockAction(1))}, s)
}

func TestCreateUnlocksScheduleStaleTrackLock(t *testing.T) {
	// nothing votes on track 4 anymore, its lock is claimable right away
	tv := TracksVoting{
		Votes:      voting(nil),
		TrackLocks: []TrackLock{{Track: 4, Amount: NewBalance(42)}},
	}

	s := NewCalculator().CreateUnlocksSchedule(tv, nil, testInfo())
	requireSchedule(t, []ScheduleItem{item(42, 0, UnlockAction(4))}, s)
}

func TestCreateUnlocksScheduleSkipsBrokenVotes(t *testing.T) {
	tv := TracksVoting{Votes: voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(60, ConvictionNone)},
		2: {Track: 1, Vote: aye(500, ConvictionLocked6x)},
		3: {Track: 2, Vote: aye(700, ConvictionNone)},
		4: {Track: 2, Vote: nil},
	})}
	refs := map[ReferendumID]ReferendumInfo{
		1: Approved{Since: 100},
		2: Unknown{},
		4: Approved{Since: 100},
	}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{item(60, 100, UnvoteAction(1, 1), UnlockAction(1))}, s)
}

func TestCreateUnlocksScheduleVoidVoteIsClaimable(t *testing.T) {
	tv := TracksVoting{Votes: voting(map[ReferendumID]ReferendumVote{
		9: {Track: 3, Vote: aye(40, ConvictionLocked3x)},
	})}
	refs := map[ReferendumID]ReferendumInfo{9: Killed{Since: 10}}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{item(40, 0, UnvoteAction(3, 9), UnlockAction(3))}, s)
}

func TestCreateUnlocksScheduleOngoingEstimate(t *testing.T) {
	tv := TracksVoting{Votes: voting(map[ReferendumID]ReferendumVote{
		5: {Track: 2, Vote: aye(10, ConvictionLocked1x)},
	})}
	refs := map[ReferendumID]ReferendumInfo{
		5: Ongoing{Track: 2, Submitted: 1, Deciding: &Deciding{Since: 1000}},
	}

	s := NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())
	requireSchedule(t, []ScheduleItem{item(10, 1000+300+100, UnvoteAction(2, 5), UnlockAction(2))}, s)
}

func TestCreateUnlocksScheduleDoesNotMutateInput(t *testing.T) {
	v := voting(map[ReferendumID]ReferendumVote{
		1: {Track: 1, Vote: aye(50, ConvictionNone)},
	})
	v.PriorLocks[1] = PriorLock{UnlockAt: 500, Amount: NewBalance(20)}
	tv := TracksVoting{Votes: v, TrackLocks: []TrackLock{{Track: 1, Amount: NewBalance(90)}}}
	refs := map[ReferendumID]ReferendumInfo{1: Approved{Since: 100}}

	NewCalculator().CreateUnlocksSchedule(tv, refs, testInfo())

	assert.Len(t, v.Votes, 1)
	assert.Equal(t, BlockNumber(500), v.PriorLocks[1].UnlockAt)
	assert.True(t, tv.TrackLocks[0].Amount.Equal(NewBalance(90)))
	assert.Len(t, refs, 1)
}

func randomTracksVoting(r *rand.Rand) (TracksVoting, map[ReferendumID]ReferendumInfo) {
	v := voting(map[ReferendumID]ReferendumVote{})
	refs := map[ReferendumID]ReferendumInfo{}
	var locks []TrackLock

	for track := TrackID(0); track < 4; track++ {
		for n := 0; n < r.Intn(5); n++ {
			id := ReferendumID(int(track)*100 + n)
			v.Votes[id] = ReferendumVote{
				Track: track,
				Vote:  Standard{Aye: r.Intn(2) == 0, Lock: Conviction(r.Intn(7)), Balance: NewBalance(uint64(r.Intn(1000)))},
			}
			switch r.Intn(6) {
			case 0:
				refs[id] = Ongoing{Track: TrackID(r.Intn(3)), Submitted: BlockNumber(r.Intn(50))}
			case 1:
				refs[id] = Ongoing{Track: 1, Submitted: 5, Deciding: &Deciding{Since: BlockNumber(r.Intn(500))}}
			case 2:
				refs[id] = Approved{Since: BlockNumber(r.Intn(500))}
			case 3:
				refs[id] = Rejected{Since: BlockNumber(r.Intn(500))}
			case 4:
				refs[id] = Cancelled{Since: 1}
			default:
				refs[id] = Unknown{}
			}
		}
		if r.Intn(2) == 0 {
			v.PriorLocks[track] = PriorLock{UnlockAt: BlockNumber(r.Intn(800)), Amount: NewBalance(uint64(r.Intn(600)))}
		}
		if r.Intn(5) == 0 {
			v.Delegatings[track] = Delegating{Prior: PriorLock{UnlockAt: BlockNumber(r.Intn(800)), Amount: NewBalance(uint64(r.Intn(600)))}}
		}
		if r.Intn(2) == 0 {
			locks = append(locks, TrackLock{Track: track, Amount: NewBalance(uint64(r.Intn(1200)))})
		}
	}
	return TracksVoting{Votes: v, TrackLocks: locks}, refs
}

func TestCreateUnlocksScheduleProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	calc := NewCalculator()
	info := testInfo()

	for round := 0; round < 200; round++ {
		tv, refs := randomTracksVoting(r)
		s := calc.CreateUnlocksSchedule(tv, refs, info)

		// idempotent
		require.True(t, s.Equal(calc.CreateUnlocksSchedule(tv, refs, info)), "round %d", round)

		// strictly ascending unlock blocks, no empty items
		for i := range s.Items {
			require.False(t, s.Items[i].IsEmpty(), "round %d", round)
			if i > 0 {
				require.Less(t, s.Items[i-1].UnlockAt, s.Items[i].UnlockAt, "round %d", round)
			}
		}

		// every prefix frees exactly what is no longer held by later locks
		candidates := flattenUnlocksByBlockNumber(calc.createVotingUnlocks(tv, refs, info))
		heldAfter := func(at BlockNumber) Balance {
			var held Balance
			for _, c := range candidates {
				if c.UnlockAt > at {
					held = maxBalance(held, c.Amount)
				}
			}
			return held
		}
		var total, freed Balance
		for _, c := range candidates {
			total = maxBalance(total, c.Amount)
		}
		for _, it := range s.Items {
			freed = freed.Add(it.Amount)
			require.True(t, freed.Equal(total.Sub(heldAfter(it.UnlockAt))), "round %d at %d", round, it.UnlockAt)
		}
		require.True(t, s.TotalAmount().Equal(total), "round %d", round)

		// unvotes are claimed exactly once and never before their unlock;
		// every other action is claimed at least once at or after its unlock
		for _, c := range candidates {
			for a := range c.Actions {
				owners, late := 0, 0
				for _, it := range s.Items {
					if it.Actions.Contains(a) {
						owners++
						if it.UnlockAt >= c.UnlockAt {
							late++
						}
					}
				}
				if a.Kind == ActionUnvote {
					require.Equal(t, 1, owners, "round %d action %s", round, a)
					require.Equal(t, 1, late, "round %d action %s", round, a)
				} else {
					require.Positive(t, late, "round %d action %s", round, a)
				}
			}
		}
	}
}
