package sync

import (
	"errors"
	"fmt"

	"github.com/ezkerrox/chainsync/common"
)

// errStopping is returned internally when a cooperative stop request is
// observed mid-cycle; Run translates it into a clean (nil-error) exit.
var errStopping = errors.New("sync driver stopping")

// FatalError marks an invariant violation or an engine ValidationError:
// conditions spec.md §7 classifies as bugs or unrecoverable engine state,
// never conditions the driver retries past. Run returns one of these (or
// nil) and never anything else.
type FatalError struct {
	Reason string
	Err    error

	LatestValidHead *common.Hash
	MissingBlock    *common.Hash
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chainsync: fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("chainsync: fatal: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(reason string, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}
