// Package health serves the liveness and readiness probes.
package health

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Check reports why a dependency is not usable, or nil.
type Check func() error

var (
	ready atomic.Bool

	mu     sync.RWMutex
	checks = map[string]Check{}
)

// SetReady flips the process-level gate. Readyz fails while it is false
// regardless of the registered checks.
func SetReady(v bool) { ready.Store(v) }

func Ready() bool { return ready.Load() }

// Register adds a named readiness check, replacing one of the same name.
func Register(name string, c Check) {
	mu.Lock()
	checks[name] = c
	mu.Unlock()
}

// Unregister removes a check.
func Unregister(name string) {
	mu.Lock()
	delete(checks, name)
	mu.Unlock()
}

// Failing runs every check and returns "name: error" for each failure,
// sorted by name.
func Failing() []string {
	mu.RLock()
	defer mu.RUnlock()
	var out []string
	for name, c := range checks {
		if err := c(); err != nil {
			out = append(out, name+": "+err.Error())
		}
	}
	sort.Strings(out)
	return out
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz is 200 once the gate is open and every check passes. Otherwise it
// is 503 with the failing checks, one per line.
func Readyz(w http.ResponseWriter, r *http.Request) {
	if !Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	if failing := Failing(); len(failing) > 0 {
		http.Error(w, strings.Join(failing, "\n"), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
