package logging

import "time"

// Timer tracks the duration of a single operation and logs it on Stop,
// mirroring the teacher's logging.StartTimer/.Stop() call-site pattern used
// around KB inserts and proof searches.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation within a category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed duration at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Named(t.category).Debugw("operation complete", "op", t.operation, "elapsed_ms", elapsed.Milliseconds())
	return elapsed
}

// StopWithThreshold logs at warn level instead of debug when elapsed exceeds
// threshold, surfacing slow KB scans / proof searches the way the teacher
// flags slow mangle re-evaluations.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Named(t.category).Warnw("operation slow", "op", t.operation, "elapsed_ms", elapsed.Milliseconds(), "threshold_ms", threshold.Milliseconds())
	} else {
		Named(t.category).Debugw("operation complete", "op", t.operation, "elapsed_ms", elapsed.Milliseconds())
	}
	return elapsed
}
