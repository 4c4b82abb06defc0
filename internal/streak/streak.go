// Package streak implements the per-user completion streak state machine.
// Transitions are a pure function of the previous state and the calendar-day
// gap to the new completion; the store applies them inside the completion
// transaction.
package streak

import "time"

// State is the streak record for one user. Invariant: Longest >= Current >= 0.
type State struct {
	UserID          string    `json:"user_id"`
	Current         int       `json:"current_streak"`
	Longest         int       `json:"longest_streak"`
	LastCompletedAt time.Time `json:"last_completed_at"`
}

// Advance returns the state after a qualifying completion at the given time.
// A nil previous state (first-ever completion) starts a streak of 1. A gap of
// at most one calendar day extends the streak; anything longer resets the
// current count to 1. Longest only ever grows.
func Advance(prev *State, at time.Time) State {
	if prev == nil {
		return State{Current: 1, Longest: 1, LastCompletedAt: at}
	}

	next := *prev
	if DayGap(prev.LastCompletedAt, at) <= 1 {
		next.Current++
	} else {
		next.Current = 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.LastCompletedAt = at
	return next
}

// DayGap returns the number of calendar days (UTC) between two instants.
// Completions on the same day yield 0, consecutive days 1.
func DayGap(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
