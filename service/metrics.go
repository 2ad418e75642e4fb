package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks commit-protocol activity for the stats endpoint.
type MetricsCollector struct {
	mu sync.RWMutex

	codesIssued      int64
	verifyFailures   int64
	ballotsCommitted int64

	miningCount int64
	miningTotal time.Duration
}

// MetricsSnapshot is the read-only view handed to callers.
type MetricsSnapshot struct {
	CodesIssued      int64 `json:"codes_issued"`
	VerifyFailures   int64 `json:"verify_failures"`
	BallotsCommitted int64 `json:"ballots_committed"`
	AvgMiningTimeMs  int64 `json:"avg_mining_time_ms"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func (mc *MetricsCollector) RecordCodeIssued() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.codesIssued++
}

func (mc *MetricsCollector) RecordVerifyFailure() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.verifyFailures++
}

func (mc *MetricsCollector) RecordCommit(miningTime time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.ballotsCommitted++
	mc.miningCount++
	mc.miningTotal += miningTime
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := MetricsSnapshot{
		CodesIssued:      mc.codesIssued,
		VerifyFailures:   mc.verifyFailures,
		BallotsCommitted: mc.ballotsCommitted,
	}
	if mc.miningCount > 0 {
		snapshot.AvgMiningTimeMs = mc.miningTotal.Milliseconds() / mc.miningCount
	}
	return snapshot
}
