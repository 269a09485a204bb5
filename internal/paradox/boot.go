// Process-wide library state.

package paradox

import (
	"errors"
	"sync"
)

// ErrNotBooted is returned by Open and Create outside of a Boot/Shutdown pair.
var ErrNotBooted = errors.New("paradox library not booted")

var (
	bootMu    sync.Mutex
	bootCount int
)

// Boot initializes the library. Calls nest; each Boot must be paired with a
// Shutdown.
func Boot() {
	bootMu.Lock()
	defer bootMu.Unlock()
	bootCount++
}

// Shutdown releases what Boot acquired.
func Shutdown() {
	bootMu.Lock()
	defer bootMu.Unlock()
	if bootCount > 0 {
		bootCount--
	}
}

func booted() bool {
	bootMu.Lock()
	defer bootMu.Unlock()
	return bootCount > 0
}
