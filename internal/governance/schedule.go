package governance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type ActionKind uint8

const (
	ActionUnvote ActionKind = iota + 1
	ActionUnlock
)

func (k ActionKind) String() string {
	switch k {
	case ActionUnvote:
		return "unvote"
	case ActionUnlock:
		return "unlock"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if k != ActionUnvote && k != ActionUnlock {
		return nil, fmt.Errorf("unknown action kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unvote":
		*k = ActionUnvote
	case "unlock":
		*k = ActionUnlock
	default:
		return fmt.Errorf("unknown action kind %q", text)
	}
	return nil
}

// Action is an extrinsic that has to be submitted to claim an unlock.
// Index is only meaningful for ActionUnvote.
type Action struct {
	Kind  ActionKind   `json:"kind"`
	Track TrackID      `json:"track"`
	Index ReferendumID `json:"referendum,omitempty"`
}

func UnvoteAction(track TrackID, index ReferendumID) Action {
	return Action{Kind: ActionUnvote, Track: track, Index: index}
}

func UnlockAction(track TrackID) Action {
	return Action{Kind: ActionUnlock, Track: track}
}

func (a Action) String() string {
	if a.Kind == ActionUnvote {
		return fmt.Sprintf("unvote(track=%d, referendum=%d)", a.Track, a.Index)
	}
	return fmt.Sprintf("%s(track=%d)", a.Kind, a.Track)
}

func (a Action) less(o Action) bool {
	if a.Track != o.Track {
		return a.Track < o.Track
	}
	if a.Kind != o.Kind {
		return a.Kind < o.Kind
	}
	return a.Index < o.Index
}

// ActionSet is an unordered set of actions. Methods never mutate the receiver.
type ActionSet map[Action]struct{}

func NewActionSet(actions ...Action) ActionSet {
	s := make(ActionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

func (s ActionSet) Len() int { return len(s) }

func (s ActionSet) Contains(a Action) bool {
	_, ok := s[a]
	return ok
}

// Union returns a new set holding the actions of both sets.
func (s ActionSet) Union(o ActionSet) ActionSet {
	u := make(ActionSet, len(s)+len(o))
	for a := range s {
		u[a] = struct{}{}
	}
	for a := range o {
		u[a] = struct{}{}
	}
	return u
}

// Sorted lists the actions ordered by track, then unvotes before unlocks.
func (s ActionSet) Sorted() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (s ActionSet) String() string {
	parts := make([]string, 0, len(s))
	for _, a := range s.Sorted() {
		parts = append(parts, a.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (s ActionSet) Equal(o ActionSet) bool {
	if len(s) != len(o) {
		return false
	}
	for a := range s {
		if !o.Contains(a) {
			return false
		}
	}
	return true
}

func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *ActionSet) UnmarshalJSON(data []byte) error {
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return err
	}
	*s = NewActionSet(actions...)
	return nil
}

// ScheduleItem is an amount that becomes free at UnlockAt once Actions are submitted.
type ScheduleItem struct {
	Amount   Balance     `json:"amount"`
	UnlockAt BlockNumber `json:"unlock_at"`
	Actions  ActionSet   `json:"actions"`
}

// IsEmpty reports whether the item neither frees funds nor requires actions.
func (i ScheduleItem) IsEmpty() bool {
	return i.Amount.IsZero() && i.Actions.Len() == 0
}

func (i ScheduleItem) Equal(o ScheduleItem) bool {
	return i.UnlockAt == o.UnlockAt && i.Amount.Equal(o.Amount) && i.Actions.Equal(o.Actions)
}

func (i ScheduleItem) String() string {
	return fmt.Sprintf("%s@%d%s", i.Amount, i.UnlockAt, i.Actions)
}

// Schedule lists unlocks in ascending UnlockAt order. Amounts are
// incremental: each item frees its amount on top of the earlier ones.
type Schedule struct {
	Items []ScheduleItem `json:"items"`
}

func (s Schedule) IsEmpty() bool { return len(s.Items) == 0 }

// TotalAmount is the sum of all unlocks, i.e. the largest lock in effect.
func (s Schedule) TotalAmount() Balance {
	var total Balance
	for _, it := range s.Items {
		total = total.Add(it.Amount)
	}
	return total
}

func (s Schedule) Equal(o Schedule) bool {
	if len(s.Items) != len(o.Items) {
		return false
	}
	for i := range s.Items {
		if !s.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}
