package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// FIELDSERVE_TEST_MODE=1 makes the binaries exit before touching Postgres or
// Redis, so smoke tests can exec them without backing services.
const testModeEnv = "FIELDSERVE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag after the environment changes.
func RefreshTestMode() {
	detectTestMode()
}
