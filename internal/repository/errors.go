package repository

import "fmt"

// RegressionError reports an attempt to move a player's checkpoint backward.
// It signals a logic or clock bug and is never silently ignored.
type RegressionError struct {
	Puuid    string
	Current  int64
	Proposed int64
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("checkpoint regression for %s: %d -> %d", e.Puuid, e.Current, e.Proposed)
}
