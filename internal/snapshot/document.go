// Package snapshot decodes per-account governance voting snapshots and
// loads them from disk or over HTTP.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"

	"governance-unlocks/internal/governance"
)

// Document is the wire format of a voting snapshot.
// Amounts are decimal strings in base units.
type Document struct {
	Account      string          `json:"account"`
	CurrentBlock uint32          `json:"current_block"`
	TracksVoting TracksVotingDoc `json:"tracks_voting"`
	Referendums  []ReferendumDoc `json:"referendums"`
	Info         InfoDoc         `json:"info"`
}

type TracksVotingDoc struct {
	Votes       []VoteDoc       `json:"votes"`
	Priors      []PriorDoc      `json:"priors"`
	Delegations []DelegationDoc `json:"delegations"`
	TrackLocks  []TrackLockDoc  `json:"track_locks"`
}

type VoteDoc struct {
	Track      uint16         `json:"track"`
	Referendum uint32         `json:"referendum"`
	Vote       AccountVoteDoc `json:"vote"`
}

// AccountVoteDoc is a standard, split or splitAbstain vote.
type AccountVoteDoc struct {
	Type       string             `json:"type"`
	Aye        bool               `json:"aye,omitempty"`
	Conviction string             `json:"conviction,omitempty"`
	Balance    governance.Balance `json:"balance"`
	Ayes       governance.Balance `json:"ayes"`
	Nays       governance.Balance `json:"nays"`
	Abstains   governance.Balance `json:"abstains"`
}

type PriorDoc struct {
	Track    uint16             `json:"track"`
	UnlockAt uint32             `json:"unlock_at"`
	Amount   governance.Balance `json:"amount"`
}

type DelegationDoc struct {
	Track      uint16             `json:"track"`
	Target     string             `json:"target"`
	Balance    governance.Balance `json:"balance"`
	Conviction string             `json:"conviction"`
	Prior      *PriorDoc          `json:"prior,omitempty"`
}

type TrackLockDoc struct {
	Track  uint16             `json:"track"`
	Amount governance.Balance `json:"amount"`
}

type ReferendumDoc struct {
	ID            uint32  `json:"id"`
	Status        string  `json:"status"`
	Track         uint16  `json:"track,omitempty"`
	Submitted     uint32  `json:"submitted,omitempty"`
	DecidingSince *uint32 `json:"deciding_since,omitempty"`
	Since         uint32  `json:"since,omitempty"`
}

type InfoDoc struct {
	VoteLockingPeriod uint32     `json:"vote_locking_period"`
	UndecidingTimeout uint32     `json:"undeciding_timeout"`
	Tracks            []TrackDoc `json:"tracks"`
}

type TrackDoc struct {
	ID             uint16 `json:"id"`
	Name           string `json:"name"`
	DecisionPeriod uint32 `json:"decision_period"`
}

// Snapshot is a decoded Document ready for the calculator.
type Snapshot struct {
	Account      string
	CurrentBlock governance.BlockNumber
	TracksVoting governance.TracksVoting
	Referendums  map[governance.ReferendumID]governance.ReferendumInfo
	Info         governance.UnlockCalculationInfo
}

// Decode reads a Document from r and converts it.
func Decode(r io.Reader) (*Snapshot, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc.Snapshot()
}

// Snapshot validates the document and converts it into calculator input.
func (d Document) Snapshot() (*Snapshot, error) {
	voting := governance.Voting{
		Votes:       make(map[governance.ReferendumID]governance.ReferendumVote, len(d.TracksVoting.Votes)),
		PriorLocks:  make(map[governance.TrackID]governance.PriorLock, len(d.TracksVoting.Priors)),
		Delegatings: make(map[governance.TrackID]governance.Delegating, len(d.TracksVoting.Delegations)),
	}

	for _, v := range d.TracksVoting.Votes {
		id := governance.ReferendumID(v.Referendum)
		if _, dup := voting.Votes[id]; dup {
			return nil, fmt.Errorf("duplicate vote on referendum %d", v.Referendum)
		}
		vote, err := v.Vote.AccountVote()
		if err != nil {
			return nil, fmt.Errorf("vote on referendum %d: %w", v.Referendum, err)
		}
		voting.Votes[id] = governance.ReferendumVote{Track: governance.TrackID(v.Track), Vote: vote}
	}

	for _, p := range d.TracksVoting.Priors {
		track := governance.TrackID(p.Track)
		if _, dup := voting.PriorLocks[track]; dup {
			return nil, fmt.Errorf("duplicate prior lock on track %d", p.Track)
		}
		voting.PriorLocks[track] = p.PriorLock()
	}

	for _, dl := range d.TracksVoting.Delegations {
		track := governance.TrackID(dl.Track)
		if _, dup := voting.Delegatings[track]; dup {
			return nil, fmt.Errorf("duplicate delegation on track %d", dl.Track)
		}
		conviction, err := parseConviction(dl.Conviction)
		if err != nil {
			return nil, fmt.Errorf("delegation on track %d: %w", dl.Track, err)
		}
		delegating := governance.Delegating{
			Balance:    dl.Balance,
			Target:     dl.Target,
			Conviction: conviction,
		}
		if dl.Prior != nil {
			delegating.Prior = dl.Prior.PriorLock()
		}
		voting.Delegatings[track] = delegating
	}

	locks := make([]governance.TrackLock, 0, len(d.TracksVoting.TrackLocks))
	for _, l := range d.TracksVoting.TrackLocks {
		locks = append(locks, governance.TrackLock{Track: governance.TrackID(l.Track), Amount: l.Amount})
	}

	referendums := make(map[governance.ReferendumID]governance.ReferendumInfo, len(d.Referendums))
	for _, r := range d.Referendums {
		id := governance.ReferendumID(r.ID)
		if _, dup := referendums[id]; dup {
			return nil, fmt.Errorf("duplicate referendum %d", r.ID)
		}
		referendums[id] = r.ReferendumInfo()
	}

	return &Snapshot{
		Account:      d.Account,
		CurrentBlock: governance.BlockNumber(d.CurrentBlock),
		TracksVoting: governance.TracksVoting{Votes: voting, TrackLocks: locks},
		Referendums:  referendums,
		Info:         d.Info.CalculationInfo(),
	}, nil
}

// AccountVote converts the wire vote into its governance variant.
func (v AccountVoteDoc) AccountVote() (governance.AccountVote, error) {
	switch v.Type {
	case "standard", "":
		conviction, err := parseConviction(v.Conviction)
		if err != nil {
			return nil, err
		}
		return governance.Standard{Aye: v.Aye, Lock: conviction, Balance: v.Balance}, nil
	case "split":
		return governance.Split{Aye: v.Ayes, Nay: v.Nays}, nil
	case "splitAbstain":
		return governance.SplitAbstain{Aye: v.Ayes, Nay: v.Nays, Abstain: v.Abstains}, nil
	default:
		return nil, fmt.Errorf("unknown vote type %q", v.Type)
	}
}

func parseConviction(s string) (governance.Conviction, error) {
	if s == "" {
		return governance.ConvictionNone, nil
	}
	return governance.ParseConviction(s)
}

func (p PriorDoc) PriorLock() governance.PriorLock {
	return governance.PriorLock{UnlockAt: governance.BlockNumber(p.UnlockAt), Amount: p.Amount}
}

// ReferendumInfo converts the wire referendum. Unrecognized statuses decode
// as Unknown so that only votes on that referendum are dropped.
func (r ReferendumDoc) ReferendumInfo() governance.ReferendumInfo {
	since := governance.BlockNumber(r.Since)
	switch r.Status {
	case governance.StatusOngoing:
		ongoing := governance.Ongoing{
			Track:     governance.TrackID(r.Track),
			Submitted: governance.BlockNumber(r.Submitted),
		}
		if r.DecidingSince != nil {
			ongoing.Deciding = &governance.Deciding{Since: governance.BlockNumber(*r.DecidingSince)}
		}
		return ongoing
	case governance.StatusApproved:
		return governance.Approved{Since: since}
	case governance.StatusRejected:
		return governance.Rejected{Since: since}
	case governance.StatusKilled:
		return governance.Killed{Since: since}
	case governance.StatusTimedOut:
		return governance.TimedOut{Since: since}
	case governance.StatusCancelled:
		return governance.Cancelled{Since: since}
	default:
		return governance.Unknown{}
	}
}

func (i InfoDoc) CalculationInfo() governance.UnlockCalculationInfo {
	tracks := make(map[governance.TrackID]governance.TrackInfo, len(i.Tracks))
	for _, t := range i.Tracks {
		tracks[governance.TrackID(t.ID)] = governance.TrackInfo{
			Name:           t.Name,
			DecisionPeriod: governance.BlockNumber(t.DecisionPeriod),
		}
	}
	return governance.UnlockCalculationInfo{
		VoteLockingPeriod: governance.BlockNumber(i.VoteLockingPeriod),
		UndecidingTimeout: governance.BlockNumber(i.UndecidingTimeout),
		Tracks:            tracks,
	}
}
