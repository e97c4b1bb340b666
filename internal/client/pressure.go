package client

import (
	"sync"

	"github.com/loom/formatbridge/internal/logging"
)

// pressureTracker implements two advisory, one-shot memory pressure
// heuristics. They never affect control flow, only logging.
type pressureTracker struct {
	mu sync.Mutex

	nearBudgetStreak int
	warnedPressure   bool

	guardStreak int
	warnedGuard bool
}

func (p *pressureTracker) observeWorkingSet(workingSetMb, budgetMb float64, log *logging.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if workingSetMb >= 0.85*budgetMb {
		p.nearBudgetStreak++
	} else {
		p.nearBudgetStreak = 0
	}
	if p.nearBudgetStreak >= 3 && !p.warnedPressure {
		log.Warnf("working set has stayed within 15%% of the memory budget for 3 consecutive formats; consider raising HOST_MEMORY_BUDGET_MB")
		p.warnedPressure = true
	}
}

func (p *pressureTracker) observeOutcome(guardExceeded bool, log *logging.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !guardExceeded {
		p.guardStreak = 0
		return
	}
	p.guardStreak++
	if p.guardStreak >= 3 && !p.warnedGuard {
		log.Warnf("memory budget exceeded on 3 consecutive format calls; review telemetry for a leak or undersized budget")
		p.warnedGuard = true
	}
}
