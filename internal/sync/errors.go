package sync

import "fmt"

// TimeoutError is raised by WaitSynchronized when its deadline passes
// (spec §7, TimeoutKind).
type TimeoutError struct {
	AccountID         string
	SynchronizationID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("synchronization timed out for account %s (synchronization id %s)", e.AccountID, e.SynchronizationID)
}
