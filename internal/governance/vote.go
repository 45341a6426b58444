package governance

// AccountVote is the vote an account cast on a single referendum.
// Implementations: Standard, Split, SplitAbstain.
type AccountVote interface {
	// TotalBalance is the amount locked by the vote.
	TotalBalance() Balance
	Ayes() Balance
	Nays() Balance
	Conviction() Conviction
	isAccountVote()
}

// Standard is a single-direction vote with a conviction.
type Standard struct {
	Aye     bool
	Lock    Conviction
	Balance Balance
}

func (v Standard) TotalBalance() Balance { return v.Balance }

func (v Standard) Ayes() Balance {
	if v.Aye {
		return v.Balance
	}
	return Balance{}
}

func (v Standard) Nays() Balance {
	if v.Aye {
		return Balance{}
	}
	return v.Balance
}

func (v Standard) Conviction() Conviction { return v.Lock }
func (Standard) isAccountVote() {}

// Split divides the balance between aye and nay without conviction.
type Split struct {
	Aye Balance
	Nay Balance
}

func (v Split) TotalBalance() Balance { return v.Aye.Add(v.Nay) }
func (v Split) Ayes() Balance { return v.Aye }
func (v Split) Nays() Balance { return v.Nay }
func (Split) Conviction() Conviction { return ConvictionNone }
func (Split) isAccountVote() {}

// SplitAbstain is a split vote that also carries an abstaining part.
type SplitAbstain struct {
	Aye     Balance
	Nay     Balance
	Abstain Balance
}

func (v SplitAbstain) TotalBalance() Balance { return v.Aye.Add(v.Nay).Add(v.Abstain) }
func (v SplitAbstain) Ayes() Balance { return v.Aye }
func (v SplitAbstain) Nays() Balance { return v.Nay }
func (SplitAbstain) Conviction() Conviction { return ConvictionNone }
func (SplitAbstain) isAccountVote() {}
