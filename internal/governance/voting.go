package governance

// PriorLock is a lock left over from votes that were already removed.
type PriorLock struct {
	UnlockAt BlockNumber
	Amount   Balance
}

// Exists reports whether the prior still locks anything.
func (p PriorLock) Exists() bool { return !p.Amount.IsZero() }

// Delegating describes the voting power an account delegated on a track.
type Delegating struct {
	Balance    Balance
	Target     string
	Conviction Conviction
	Prior      PriorLock
}

// ReferendumVote ties a cast vote to the track of its referendum.
type ReferendumVote struct {
	Track TrackID
	Vote  AccountVote
}

// Voting is the per-account conviction voting state across all tracks.
type Voting struct {
	Votes       map[ReferendumID]ReferendumVote
	PriorLocks  map[TrackID]PriorLock
	Delegatings map[TrackID]Delegating
}

// TracksByReferendums maps each voted referendum to its track.
func (v Voting) TracksByReferendums() map[ReferendumID]TrackID {
	tracks := make(map[ReferendumID]TrackID, len(v.Votes))
	for id, rv := range v.Votes {
		tracks[id] = rv.Track
	}
	return tracks
}

// LockedBalance is the amount the track needs to keep locked to cover
// every vote, prior and delegation recorded on it.
func (v Voting) LockedBalance(track TrackID) Balance {
	var locked Balance
	for _, rv := range v.Votes {
		if rv.Track == track && rv.Vote != nil {
			locked = maxBalance(locked, rv.Vote.TotalBalance())
		}
	}
	if prior, ok := v.PriorLocks[track]; ok && prior.Exists() {
		locked = maxBalance(locked, prior.Amount)
	}
	if d, ok := v.Delegatings[track]; ok {
		locked = maxBalance(locked, d.Balance)
		if d.Prior.Exists() {
			locked = maxBalance(locked, d.Prior.Amount)
		}
	}
	return locked
}

// TrackLock is the amount currently locked on-chain for a track.
type TrackLock struct {
	Track  TrackID
	Amount Balance
}

type TracksVoting struct {
	Votes      Voting
	TrackLocks []TrackLock
}

// TrackInfo holds the per-track chain constants the estimator needs.
type TrackInfo struct {
	Name           string
	DecisionPeriod BlockNumber
}

// UnlockCalculationInfo carries the chain constants used to estimate lock ends.
type UnlockCalculationInfo struct {
	VoteLockingPeriod BlockNumber
	UndecidingTimeout BlockNumber
	Tracks            map[TrackID]TrackInfo
}
