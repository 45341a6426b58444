package governance

import (
	"fmt"
	"sort"
)

// Calculator builds unlock schedules from conviction voting state.
//
// The schedule is exact once every involved referendum is completed; for
// ongoing referenda the end of the decision period is estimated.
//
// Building a schedule takes three passes:
//  1. Individual unlocks per track: one per existing prior, one per vote
//     (never earlier than the track's prior), one replacing direct votes when
//     the track is delegated, and one at block 0 when the track lock exceeds
//     what the voting state needs.
//  2. Unlocks sharing a block are merged: the largest amount binds and the
//     actions are united.
//  3. Walking from the farthest unlock backwards, an unlock only frees what
//     exceeds every later unlock. Unlocks fully covered by a later one are
//     dropped and their actions move to the covering unlock.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

type trackUnlocks map[TrackID][]ScheduleItem

// EstimateVoteLockingPeriod returns the block at which vote stops locking
// funds on the referendum. ok is false when the vote imposes no lock or the
// end cannot be determined yet.
func (c *Calculator) EstimateVoteLockingPeriod(
	referendum ReferendumInfo,
	vote AccountVote,
	info UnlockCalculationInfo,
) (unlockAt BlockNumber, ok bool, err error) {
	if vote == nil {
		return 0, false, fmt.Errorf("%w: missing vote", ErrDataCorruption)
	}
	convictionPeriod, err := vote.Conviction().Duration(info.VoteLockingPeriod)
	if err != nil {
		return 0, false, err
	}

	var parts []BlockNumber
	switch ref := referendum.(type) {
	case Ongoing:
		track, found := info.Tracks[ref.Track]
		if !found {
			return 0, false, nil
		}
		if ref.Deciding != nil {
			parts = []BlockNumber{ref.Deciding.Since, track.DecisionPeriod, convictionPeriod}
		} else {
			parts = []BlockNumber{ref.Submitted, info.UndecidingTimeout, track.DecisionPeriod, convictionPeriod}
		}
	case Approved:
		if vote.Ayes().IsZero() {
			return 0, false, nil
		}
		parts = []BlockNumber{ref.Since, convictionPeriod}
	case Rejected:
		if vote.Nays().IsZero() {
			return 0, false, nil
		}
		parts = []BlockNumber{ref.Since, convictionPeriod}
	case Killed, TimedOut, Cancelled:
		return 0, false, nil
	case Unknown:
		return 0, false, fmt.Errorf("%w: referendum in unknown state", ErrDataCorruption)
	default:
		return 0, false, fmt.Errorf("%w: unsupported referendum state %T", ErrDataCorruption, referendum)
	}

	unlockAt, err = addBlocks(parts...)
	if err != nil {
		return 0, false, err
	}
	return unlockAt, true, nil
}

// CreateUnlocksSchedule builds the claiming schedule for the account's voting.
func (c *Calculator) CreateUnlocksSchedule(
	tracksVoting TracksVoting,
	referendums map[ReferendumID]ReferendumInfo,
	info UnlockCalculationInfo,
) Schedule {
	unlocks := c.createVotingUnlocks(tracksVoting, referendums, info)
	return createSchedule(unlocks)
}

func (c *Calculator) createVotingUnlocks(
	tracksVoting TracksVoting,
	referendums map[ReferendumID]ReferendumInfo,
	info UnlockCalculationInfo,
) trackUnlocks {
	unlocks := c.createUnlocksFromVotes(tracksVoting.Votes.Votes, referendums, info)
	unlocks = extendUnlocksForVotesWithPriors(unlocks, tracksVoting.Votes.PriorLocks)
	unlocks = extendUnlocksWithDelegatingPriors(unlocks, tracksVoting.Votes.Delegatings)
	return extendUnlocksWithFreeTrackLocks(unlocks, tracksVoting)
}

func (c *Calculator) createUnlocksFromVotes(
	votes map[ReferendumID]ReferendumVote,
	referendums map[ReferendumID]ReferendumInfo,
	info UnlockCalculationInfo,
) trackUnlocks {
	unlocks := make(trackUnlocks)
	for id, rv := range votes {
		referendum, found := referendums[id]
		if !found || referendum == nil {
			continue
		}

		// a vote we cannot reason about must not hide the rest of the schedule
		unlockAt, _, err := c.EstimateVoteLockingPeriod(referendum, rv.Vote, info)
		if err != nil {
			continue
		}

		unlocks[rv.Track] = append(unlocks[rv.Track], ScheduleItem{
			Amount:   rv.Vote.TotalBalance(),
			UnlockAt: unlockAt,
			Actions:  NewActionSet(UnvoteAction(rv.Track, id), UnlockAction(rv.Track)),
		})
	}
	return unlocks
}

func unlockFromPrior(prior PriorLock, track TrackID) ScheduleItem {
	return ScheduleItem{
		Amount:   prior.Amount,
		UnlockAt: prior.UnlockAt,
		Actions:  NewActionSet(UnlockAction(track)),
	}
}

func extendUnlocksForVotesWithPriors(unlocks trackUnlocks, priors map[TrackID]PriorLock) trackUnlocks {
	out := unlocks.clone()
	for track, prior := range priors {
		if !prior.Exists() {
			continue
		}

		// voted amount cannot be unlocked before the prior on the same track
		items := make([]ScheduleItem, 0, len(unlocks[track])+1)
		for _, it := range unlocks[track] {
			if prior.UnlockAt > it.UnlockAt {
				it.UnlockAt = prior.UnlockAt
			}
			items = append(items, it)
		}
		out[track] = append(items, unlockFromPrior(prior, track))
	}
	return out
}

func extendUnlocksWithDelegatingPriors(unlocks trackUnlocks, delegations map[TrackID]Delegating) trackUnlocks {
	out := unlocks.clone()
	for track, d := range delegations {
		if !d.Prior.Exists() {
			continue
		}
		// delegating and voting directly exclude each other on a track
		out[track] = []ScheduleItem{unlockFromPrior(d.Prior, track)}
	}
	return out
}

// extendUnlocksWithFreeTrackLocks adds an immediate unlock for tracks locking
// more than their voting state needs. The whole track lock is used as the
// amount: after normalization only the part above later unlocks stays
// claimable at block 0, which is exactly the gap when this track binds.
func extendUnlocksWithFreeTrackLocks(unlocks trackUnlocks, tracksVoting TracksVoting) trackUnlocks {
	out := unlocks.clone()
	for _, lock := range tracksVoting.TrackLocks {
		needed := tracksVoting.Votes.LockedBalance(lock.Track)
		if lock.Amount.Cmp(needed) <= 0 {
			continue
		}
		out[lock.Track] = append(out[lock.Track], ScheduleItem{
			Amount:   lock.Amount,
			UnlockAt: 0,
			Actions:  NewActionSet(UnlockAction(lock.Track)),
		})
	}
	return out
}

func (u trackUnlocks) clone() trackUnlocks {
	out := make(trackUnlocks, len(u))
	for track, items := range u {
		out[track] = append([]ScheduleItem(nil), items...)
	}
	return out
}

func createSchedule(unlocks trackUnlocks) Schedule {
	flattened := flattenUnlocksByBlockNumber(unlocks)
	return Schedule{Items: normalizeUnlocks(flattened)}
}

// flattenUnlocksByBlockNumber merges unlocks of all tracks that happen at the
// same block. Locks do not stack, so the largest amount binds.
func flattenUnlocksByBlockNumber(unlocks trackUnlocks) []ScheduleItem {
	byBlock := make(map[BlockNumber]ScheduleItem)
	for _, items := range unlocks {
		for _, it := range items {
			prev, found := byBlock[it.UnlockAt]
			if !found {
				byBlock[it.UnlockAt] = it
				continue
			}
			byBlock[it.UnlockAt] = ScheduleItem{
				Amount:   maxBalance(prev.Amount, it.Amount),
				UnlockAt: it.UnlockAt,
				Actions:  prev.Actions.Union(it.Actions),
			}
		}
	}

	out := make([]ScheduleItem, 0, len(byBlock))
	for _, it := range byBlock {
		out = append(out, it)
	}
	return out
}

// normalizeUnlocks turns per-block lock amounts into incremental unlocks.
// Input must hold at most one item per block.
func normalizeUnlocks(unlocks []ScheduleItem) []ScheduleItem {
	sorted := append([]ScheduleItem(nil), unlocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UnlockAt > sorted[j].UnlockAt })

	var (
		maxAmount Balance
		maxIndex  = -1
	)
	for i, it := range sorted {
		if maxIndex < 0 {
			maxAmount, maxIndex = it.Amount, i
			continue
		}

		if it.Amount.Cmp(maxAmount) > 0 {
			// only the part above the later maximum is freed here
			sorted[i] = ScheduleItem{
				Amount:   it.Amount.Sub(maxAmount),
				UnlockAt: it.UnlockAt,
				Actions:  it.Actions,
			}
			maxAmount, maxIndex = it.Amount, i
			continue
		}

		// covered by a later unlock, which inherits the actions
		dominant := sorted[maxIndex]
		sorted[maxIndex] = ScheduleItem{
			Amount:   dominant.Amount,
			UnlockAt: dominant.UnlockAt,
			Actions:  dominant.Actions.Union(it.Actions),
		}
		sorted[i] = ScheduleItem{UnlockAt: it.UnlockAt}
	}

	out := make([]ScheduleItem, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		if !sorted[i].IsEmpty() {
			out = append(out, sorted[i])
		}
	}
	return out
}
