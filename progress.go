package mint

// FetchProgress is one progress update for a fetch in flight.
type FetchProgress struct {
	// Resolution identifies the fetch the event belongs to.
	Resolution ModResolution

	// Stage identifies the current phase.
	Stage FetchStage

	// Done is the number of payload bytes received so far.
	Done uint64

	// Total is the expected payload size.
	// Zero indicates the total is unknown.
	Total uint64
}

// FetchStage identifies the phase of a fetch.
type FetchStage uint8

const (
	// StageTransferring indicates payload bytes are being received.
	StageTransferring FetchStage = iota

	// StageComplete indicates the fetch finished and its path is final.
	StageComplete
)

// String returns the string representation of the stage.
func (s FetchStage) String() string {
	switch s {
	case StageTransferring:
		return "transferring"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ProgressWriter counts bytes written through it and emits one
// StageTransferring event per write. Providers wrap download streams with
// it. A nil channel disables events; the byte tally still advances.
type ProgressWriter struct {
	ch    chan<- FetchProgress
	res   ModResolution
	total uint64
	done  uint64
}

// NewProgressWriter returns a writer reporting progress for res on ch.
// total is the expected payload size, zero when unknown.
func NewProgressWriter(ch chan<- FetchProgress, res ModResolution, total uint64) *ProgressWriter {
	return &ProgressWriter{ch: ch, res: res, total: total}
}

// Write implements io.Writer.
func (w *ProgressWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 {
		w.done += uint64(n)
		if w.ch != nil {
			w.ch <- FetchProgress{Resolution: w.res, Stage: StageTransferring, Done: w.done, Total: w.total}
		}
	}
	return n, nil
}

// Complete emits the terminal StageComplete event.
func (w *ProgressWriter) Complete() {
	if w.ch != nil {
		w.ch <- FetchProgress{Resolution: w.res, Stage: StageComplete, Done: w.done, Total: w.total}
	}
}
