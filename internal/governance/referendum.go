package governance

// ReferendumInfo is the lifecycle state of a referendum.
// Implementations: Ongoing, Approved, Rejected, Killed, TimedOut, Cancelled, Unknown.
type ReferendumInfo interface {
	Status() string
	isReferendumInfo()
}

// Deciding marks the block a referendum entered its decision phase.
type Deciding struct {
	Since BlockNumber
}

type Ongoing struct {
	Track     TrackID
	Submitted BlockNumber
	Deciding  *Deciding
}

// Completed carries the block a finished referendum was concluded at.
type Completed struct {
	Since BlockNumber
}

type (
	Approved  Completed
	Rejected  Completed
	Killed    Completed
	TimedOut  Completed
	Cancelled Completed
	Unknown   struct{}
)

const (
	StatusOngoing   = "ongoing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusKilled    = "killed"
	StatusTimedOut  = "timedOut"
	StatusCancelled = "cancelled"
	StatusUnknown   = "unknown"
)

func (Ongoing) Status() string   { return StatusOngoing }
func (Approved) Status() string  { return StatusApproved }
func (Rejected) Status() string  { return StatusRejected }
func (Killed) Status() string    { return StatusKilled }
func (TimedOut) Status() string  { return StatusTimedOut }
func (Cancelled) Status() string { return StatusCancelled }
func (Unknown) Status() string   { return StatusUnknown }

func (Ongoing) isReferendumInfo()   {}
func (Approved) isReferendumInfo()  {}
func (Rejected) isReferendumInfo()  {}
func (Killed) isReferendumInfo()    {}
func (TimedOut) isReferendumInfo()  {}
func (Cancelled) isReferendumInfo() {}
func (Unknown) isReferendumInfo()   {}
