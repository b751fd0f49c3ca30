package lib

/* thread.go contains functions useful for multi-threading. */

import (
	"runtime"
)

// SetThreads caps the number of OS threads running Go code. n <= 0 keeps the
// runtime's default of one thread per logical core.
func SetThreads(n int) {
	if n <= 0 { return }
	if n > runtime.NumCPU() {
		ExternalErrorf("%d threads requested, but your system only has %d "+
			"cores. If you want remora to use the maximum number of "+
			"threads, set Threads = -1.", n, runtime.NumCPU())
	}

	runtime.GOMAXPROCS(n)
}
