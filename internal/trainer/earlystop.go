package trainer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StopCondition ends a run early after an epoch.
type StopCondition interface {
	ShouldStop(summary EpochSummary) (bool, error)
}

// StopFunc adapts a function to StopCondition.
type StopFunc func(summary EpochSummary) (bool, error)

func (f StopFunc) ShouldStop(summary EpochSummary) (bool, error) {
	return f(summary)
}

type resetter interface {
	Reset()
}

// stopStater is a stop condition whose progress survives a resume. The state
// is stored in checkpoint metadata under "stop.<index>.<key>", where index is
// the position of the condition among the run's options.
type stopStater interface {
	StopState() map[string]string
	// RestoreStopState reports false when state does not belong to the
	// condition; the condition is then reset.
	RestoreStopState(state map[string]string) (bool, error)
}

const stopStatePrefix = "stop."

func stopStateKey(index int, key string) string {
	return stopStatePrefix + strconv.Itoa(index) + "." + key
}

// stopStateFor extracts the state of the condition at index from metadata.
func stopStateFor(md map[string]string, index int) map[string]string {
	prefix := stopStatePrefix + strconv.Itoa(index) + "."
	state := make(map[string]string)
	for k, v := range md {
		if key, ok := strings.CutPrefix(k, prefix); ok {
			state[key] = v
		}
	}
	return state
}

// EarlyStopping stops when a monitored value has not improved by more than
// MinDelta for Patience consecutive epochs.
//
// Monitor names a value of EpochSummary: "val_loss", "train_loss", or a metric
// key with an optional "val_"/"train_" prefix. Mode is "min" (default) or "max".
type EarlyStopping struct {
	Monitor  string
	Patience int
	MinDelta float64
	Mode     string

	best float64
	wait int
	seen bool
}

// NewEarlyStopping returns a condition monitoring val_loss in min mode.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{Monitor: "val_loss", Patience: patience, Mode: "min"}
}

// Validate checks the options.
func (e *EarlyStopping) Validate() error {
	if e.Patience < 0 {
		return &ConfigurationError{Field: "early_stopping.patience", Value: e.Patience, Reason: "must be >= 0"}
	}
	if e.MinDelta < 0 {
		return &ConfigurationError{Field: "early_stopping.min_delta", Value: e.MinDelta, Reason: "must be >= 0"}
	}
	switch e.Mode {
	case "", "min", "max":
	default:
		return &ConfigurationError{Field: "early_stopping.mode", Value: e.Mode, Reason: "must be min or max"}
	}
	return nil
}

// Reset forgets the best value seen.
func (e *EarlyStopping) Reset() {
	e.best, e.wait, e.seen = 0, 0, false
}

// ShouldStop records the epoch's monitored value.
func (e *EarlyStopping) ShouldStop(summary EpochSummary) (bool, error) {
	monitor := e.monitor()
	v, ok := summary.Value(monitor)
	if !ok {
		return false, fmt.Errorf("early stopping: monitored value %q not reported", monitor)
	}
	if math.IsNaN(v) {
		return true, nil
	}

	if !e.seen || e.improved(v) {
		e.best, e.wait, e.seen = v, 0, true
		return false, nil
	}
	e.wait++
	return e.wait >= e.Patience, nil
}

func (e *EarlyStopping) String() string {
	return fmt.Sprintf("early stopping on %s (patience %d, best %g)", e.monitor(), e.Patience, e.best)
}

func (e *EarlyStopping) monitor() string {
	if e.Monitor == "" {
		return "val_loss"
	}
	return e.Monitor
}

func (e *EarlyStopping) improved(v float64) bool {
	if strings.EqualFold(e.Mode, "max") {
		return v > e.best+e.MinDelta
	}
	return v < e.best-e.MinDelta
}

// StopState exports the best value and wait count. It is nil before the
// first observed epoch.
func (e *EarlyStopping) StopState() map[string]string {
	if !e.seen {
		return nil
	}
	return map[string]string{
		"monitor": e.monitor(),
		"best":    strconv.FormatFloat(e.best, 'g', -1, 64),
		"wait":    strconv.Itoa(e.wait),
	}
}

// RestoreStopState loads state saved by StopState. State recorded for another
// monitor is ignored.
func (e *EarlyStopping) RestoreStopState(state map[string]string) (bool, error) {
	if len(state) == 0 || state["monitor"] != e.monitor() {
		return false, nil
	}
	best, err := strconv.ParseFloat(state["best"], 64)
	if err != nil {
		return false, fmt.Errorf("early stopping state: best %q: %w", state["best"], err)
	}
	wait, err := strconv.Atoi(state["wait"])
	if err != nil || wait < 0 {
		return false, fmt.Errorf("early stopping state: invalid wait %q", state["wait"])
	}
	e.best, e.wait, e.seen = best, wait, true
	return true, nil
}
