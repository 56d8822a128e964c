package aggregation

import "fmt"

// Probe is the outcome of the fast total-count probe.
type Probe struct {
	Attempted  bool
	TotalCount *int64
	Err        error
}

// Plan is the ordered list of strategies the executor will try. It advances
// to the next strategy only when the current one fails.
type Plan struct {
	Mode       Mode
	Strategies []Strategy
	TotalCount *int64
	Reason     string
}

// DecidePlan chooses the strategy chain for a mode and probe result. It does
// no I/O.
func DecidePlan(mode Mode, probe Probe, opts Options) Plan {
	opts = opts.normalized()
	switch mode {
	case ModeAccurate:
		return Plan{Mode: mode, Strategies: []Strategy{StrategyAccurate}, Reason: "accurate scan requested"}
	case ModeSampling:
		if probe.Err != nil || probe.TotalCount == nil {
			reason := "count probe unavailable"
			if probe.Err != nil {
				reason = fmt.Sprintf("count probe failed: %v", probe.Err)
			}
			return Plan{Mode: mode, Strategies: []Strategy{StrategyAccurate}, Reason: reason + "; falling back to accurate scan"}
		}
		total := *probe.TotalCount
		if total > int64(opts.SamplingThreshold) {
			return Plan{
				Mode:       mode,
				Strategies: []Strategy{StrategySampled, StrategyCapped},
				TotalCount: probe.TotalCount,
				Reason:     fmt.Sprintf("%d records exceeds sampling threshold %d", total, opts.SamplingThreshold),
			}
		}
		return Plan{
			Mode:       mode,
			Strategies: []Strategy{StrategyAccurate},
			TotalCount: probe.TotalCount,
			Reason:     fmt.Sprintf("%d records within sampling threshold %d; accurate scan", total, opts.SamplingThreshold),
		}
	default:
		return Plan{Mode: ModeCapped, Strategies: []Strategy{StrategyCapped}, Reason: fmt.Sprintf("default scan capped at %d records", opts.DefaultRecordCap)}
	}
}

// SampleOffsets returns evenly spaced chunk offsets across total records:
// chunk i starts at the beginning of stratum i of total/chunks records.
func SampleOffsets(total int64, sampleSize, chunks int) (offsets []int64, chunkSize int) {
	if chunks <= 0 {
		chunks = 1
	}
	if total <= 0 || sampleSize <= 0 {
		return nil, 0
	}
	if int64(sampleSize) >= total {
		return []int64{0}, int(total)
	}
	chunkSize = (sampleSize + chunks - 1) / chunks
	for i := 0; i < chunks; i++ {
		offsets = append(offsets, int64(i)*total/int64(chunks))
	}
	return offsets, chunkSize
}
