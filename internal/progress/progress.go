// Package progress tracks the authoritative global counters pushed by the
// processing backend. The client never derives these from its own records;
// the backend may retry or partially count in ways the client cannot see.
package progress

// Snapshot is the current global progress state.
type Snapshot struct {
	TotalAccounts     int
	ProcessedAccounts int
	SuccessAccounts   int
	FailedAccounts    int
	PercentComplete   float64
	SuccessFile       string
	FailFile          string
}

// Update carries the fields of a progress event.
type Update struct {
	Total           int
	Processed       int
	SuccessCount    int
	FailCount       int
	PercentComplete float64
}

// ResultFiles carries the fields of a result_files event. Empty fields
// mean "not produced yet", not "clear".
type ResultFiles struct {
	SuccessFile string
	FailFile    string
}

type Tracker struct {
	current       Snapshot
	completeFired bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Apply overwrites the counters verbatim and reports whether this update
// crossed the completion threshold for the first time. The edge latches so
// repeated 100% updates never re-fire.
func (t *Tracker) Apply(update Update) bool {
	t.current.TotalAccounts = update.Total
	t.current.ProcessedAccounts = update.Processed
	t.current.SuccessAccounts = update.SuccessCount
	t.current.FailedAccounts = update.FailCount
	t.current.PercentComplete = update.PercentComplete

	if t.IsComplete() && !t.completeFired {
		t.completeFired = true
		return true
	}
	return false
}

// ApplyResultFiles merges the artifact identifiers, preserving previously
// set values when a field is absent.
func (t *Tracker) ApplyResultFiles(files ResultFiles) {
	if files.SuccessFile != "" {
		t.current.SuccessFile = files.SuccessFile
	}
	if files.FailFile != "" {
		t.current.FailFile = files.FailFile
	}
}

func (t *Tracker) IsComplete() bool {
	return t.current.PercentComplete >= 100
}

func (t *Tracker) Snapshot() Snapshot {
	return t.current
}

// Reset clears all state for a new run, including the completion latch.
func (t *Tracker) Reset() {
	t.current = Snapshot{}
	t.completeFired = false
}
