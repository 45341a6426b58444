package governance

// ClaimableChunk is what can be claimed right away by submitting Actions.
type ClaimableChunk struct {
	Amount  Balance   `json:"amount"`
	Actions ActionSet `json:"actions"`
}

// PendingChunk is an amount that is still locked until UnlockAt.
type PendingChunk struct {
	Amount   Balance     `json:"amount"`
	UnlockAt BlockNumber `json:"unlock_at"`
	Actions  ActionSet   `json:"actions"`
}

// ClaimSchedule is a schedule split at a given block: at most one claimable
// chunk followed by pending chunks in ascending unlock order.
type ClaimSchedule struct {
	At        BlockNumber     `json:"at"`
	Claimable *ClaimableChunk `json:"claimable,omitempty"`
	Pending   []PendingChunk  `json:"pending"`
}

// ClaimSchedule folds every unlock due at or before block into one claimable
// chunk and keeps the rest as pending.
func (s Schedule) ClaimSchedule(block BlockNumber) ClaimSchedule {
	cs := ClaimSchedule{At: block, Pending: []PendingChunk{}}
	if claimable, ok := s.ClaimableAt(block); ok {
		cs.Claimable = &claimable
	}
	for _, it := range s.Items {
		if it.UnlockAt <= block {
			continue
		}
		cs.Pending = append(cs.Pending, PendingChunk{
			Amount:   it.Amount,
			UnlockAt: it.UnlockAt,
			Actions:  it.Actions,
		})
	}
	return cs
}

// ClaimableAt sums the unlocks due at or before block.
func (s Schedule) ClaimableAt(block BlockNumber) (ClaimableChunk, bool) {
	chunk := ClaimableChunk{Actions: NewActionSet()}
	found := false
	for _, it := range s.Items {
		if it.UnlockAt > block {
			break
		}
		chunk.Amount = chunk.Amount.Add(it.Amount)
		chunk.Actions = chunk.Actions.Union(it.Actions)
		found = true
	}
	return chunk, found
}

func (cs ClaimSchedule) TotalClaimable() Balance {
	if cs.Claimable == nil {
		return Balance{}
	}
	return cs.Claimable.Amount
}

func (cs ClaimSchedule) TotalPending() Balance {
	var total Balance
	for _, p := range cs.Pending {
		total = total.Add(p.Amount)
	}
	return total
}

// NextUnlock returns the earliest pending chunk, if any.
func (cs ClaimSchedule) NextUnlock() (PendingChunk, bool) {
	if len(cs.Pending) == 0 {
		return PendingChunk{}, false
	}
	return cs.Pending[0], true
}
