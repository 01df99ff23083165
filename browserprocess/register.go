// Package browserprocess keeps track of live engine processes so that they
// can be killed when the program has to stop abruptly.
package browserprocess

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/osext"
)

type processState struct {
	pid   int
	runID string
}

var (
	register   = map[string]*processState{} //nolint:gochecknoglobals
	registerMu = sync.Mutex{}               //nolint:gochecknoglobals
)

func key(ctx context.Context, pid int) string {
	return strconv.Itoa(pid) + "/" + osext.GetRunID(ctx) + "/" + GetItemID(ctx)
}

// Register records pid as a live engine process of the run and item found in
// ctx.
func Register(ctx context.Context, logger *log.Logger, pid int) {
	registerMu.Lock()
	defer registerMu.Unlock()

	logger.Debugf("BrowserProcess:Register", "registered engine pid %d", pid)

	register[key(ctx, pid)] = &processState{pid: pid, runID: osext.GetRunID(ctx)}
}

// Unregister forgets pid once the engine process has exited.
func Unregister(ctx context.Context, logger *log.Logger, pid int) {
	registerMu.Lock()
	defer registerMu.Unlock()

	logger.Debugf("BrowserProcess:Unregister", "unregistered engine pid %d", pid)

	delete(register, key(ctx, pid))
}

// Pids returns the registered pids, sorted.
func Pids() []int {
	registerMu.Lock()
	defer registerMu.Unlock()

	pids := make([]int, 0, len(register))
	for _, v := range register {
		pids = append(pids, v.pid)
	}
	sort.Ints(pids)

	return pids
}

// ForceProcessShutdown kills the registered engine processes. When ctx
// carries a run ID only the processes of that run are killed.
func ForceProcessShutdown(ctx context.Context) {
	registerMu.Lock()
	defer registerMu.Unlock()

	rID := osext.GetRunID(ctx)
	for k, v := range register {
		if rID != "" && v.runID != rID {
			continue
		}
		Kill(v.pid)
		delete(register, k)
	}
}

// Kill looks for and kills the process with the given pid. Tests replace it
// so that no real process is touched.
var Kill = func(pid int) { //nolint:gochecknoglobals
	p, err := os.FindProcess(pid)
	if err != nil {
		// optimistically continue and don't kill the process
		return
	}
	// no need to check the errors since we're already dying.
	_ = p.Kill()
	_ = p.Release()
}
