package playback

import (
	"fmt"
	"time"
)

const maxRecordedErrors = 10

// Statistics summarizes one playback run. Durations are in seconds.
type Statistics struct {
	TotalActions       int      `json:"total_actions"`
	ActionsExecuted    int      `json:"actions_executed"`
	ActionsFailed      int      `json:"actions_failed"`
	ActionsSkipped     int      `json:"actions_skipped"`
	TotalDuration      float64  `json:"total_duration"`
	TotalExecutionTime float64  `json:"total_execution_time"`
	TotalDelayTime     float64  `json:"total_delay_time"`
	AverageActionTime  float64  `json:"average_action_time"`
	MinActionTime      float64  `json:"min_action_time"`
	MaxActionTime      float64  `json:"max_action_time"`
	MaxTimingDrift     float64  `json:"max_timing_drift"`
	TimingDriftCount   int      `json:"timing_drift_count"`
	LoopsCompleted     int      `json:"loops_completed"`
	PlaybackSpeed      float64  `json:"playback_speed"`
	CoordinatesClamped int      `json:"coordinates_clamped"`
	SuccessRate        float64  `json:"success_rate"`
	ErrorCount         int      `json:"error_count"`
	Errors             []string `json:"errors,omitempty"` // First maxRecordedErrors messages
}

// statsAccumulator is owned by the execution goroutine; it is not safe for
// concurrent use.
type statsAccumulator struct {
	stats     Statistics
	startedAt time.Time
	actionSum time.Duration
	minAction time.Duration
	maxAction time.Duration
	delaySum  time.Duration
	maxDrift  time.Duration
	final     *Statistics
}

func newStatsAccumulator(actionsPerLoop, loops int, duration, speed float64) *statsAccumulator {
	return &statsAccumulator{
		stats: Statistics{
			TotalActions:  actionsPerLoop * loops,
			TotalDuration: duration,
			PlaybackSpeed: speed,
		},
		startedAt: time.Now(),
	}
}

func (s *statsAccumulator) executed(d time.Duration) {
	s.stats.ActionsExecuted++
	s.actionSum += d
	if s.minAction == 0 || d < s.minAction {
		s.minAction = d
	}
	if d > s.maxAction {
		s.maxAction = d
	}
}

func (s *statsAccumulator) skipped() {
	s.stats.ActionsSkipped++
}

func (s *statsAccumulator) skippedWithError(err error) {
	s.stats.ActionsSkipped++
	s.recordError(err)
}

func (s *statsAccumulator) failed(err error) {
	s.stats.ActionsFailed++
	s.recordError(err)
}

func (s *statsAccumulator) recordError(err error) {
	s.stats.ErrorCount++
	if len(s.stats.Errors) < maxRecordedErrors {
		s.stats.Errors = append(s.stats.Errors, err.Error())
	}
}

func (s *statsAccumulator) delayed(d time.Duration) {
	if d > 0 {
		s.delaySum += d
	}
}

// drift records how far behind schedule an action started. Only drift past
// the tolerance counts as a drift occurrence.
func (s *statsAccumulator) drift(d, tolerance time.Duration) {
	if d > s.maxDrift {
		s.maxDrift = d
	}
	if d > tolerance {
		s.stats.TimingDriftCount++
	}
}

func (s *statsAccumulator) clamped() {
	s.stats.CoordinatesClamped++
}

func (s *statsAccumulator) loopCompleted() {
	s.stats.LoopsCompleted++
}

// finalize computes derived fields. Only the first call computes anything;
// later calls return the same result.
func (s *statsAccumulator) finalize() Statistics {
	if s.final != nil {
		return *s.final
	}
	st := s.stats
	st.TotalExecutionTime = time.Since(s.startedAt).Seconds()
	st.TotalDelayTime = s.delaySum.Seconds()
	st.MaxTimingDrift = s.maxDrift.Seconds()
	st.MinActionTime = s.minAction.Seconds()
	st.MaxActionTime = s.maxAction.Seconds()
	if st.ActionsExecuted > 0 {
		st.AverageActionTime = (s.actionSum / time.Duration(st.ActionsExecuted)).Seconds()
	}
	if attempted := st.ActionsExecuted + st.ActionsFailed + st.ActionsSkipped; attempted > 0 {
		st.SuccessRate = float64(st.ActionsExecuted) / float64(attempted)
	}
	s.final = &st
	return st
}

// completionReason describes how a run ended for Complete.Reason
func completionReason(completed bool, stats Statistics, cause error) string {
	switch {
	case cause != nil:
		return "error: " + cause.Error()
	case !completed:
		return "stopped"
	case stats.ErrorCount > 0:
		return fmt.Sprintf("finished_with_errors(%d)", stats.ErrorCount)
	default:
		return "finished"
	}
}
