package client

import (
	"time"

	"github.com/loom/formatbridge/internal/protocol"
	"github.com/loom/formatbridge/internal/telemetry"
)

func successRecord(p resultPayload, opts protocol.FormattingOptions, rng *protocol.Range, budgetMb float64) telemetry.Record {
	r := telemetry.Record{
		Timestamp:      time.Now().UnixMilli(),
		Success:        true,
		Options:        opts,
		Range:          rng,
		MemoryBudgetMb: budgetMb,
	}
	if p.Metrics != nil {
		r.ElapsedMs = p.Metrics.ElapsedMs
		r.Diagnostics = len(p.Diagnostics)
		r.ManagedMemoryMb = p.Metrics.ManagedMemoryMb
		r.WorkingSetMb = p.Metrics.WorkingSetMb
		r.WorkingSetDeltaMb = p.Metrics.WorkingSetDeltaMb
	}
	return r
}

func failureRecord(err error, opts protocol.FormattingOptions, rng *protocol.Range, errorCode string, budgetMb float64) telemetry.Record {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return telemetry.Record{
		Timestamp:      time.Now().UnixMilli(),
		Success:        false,
		Error:          msg,
		ErrorCode:      errorCode,
		Options:        opts,
		Range:          rng,
		MemoryBudgetMb: budgetMb,
	}
}
