package manager

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/alxayo/ch10parse/internal/ch10/worker"
)

// phase identifies which part of a run a worker is currently in, as
// recorded in the progress table.
type phase string

const (
	phasePending phase = "pending"
	phaseDone    phase = "done"
)

// WorkerProgress is one row of the manager's progress table: written by
// exactly one worker goroutine when it finishes, and readable at any time
// through Snapshot. Run does not poll the table while workers run; it
// waits for each phase's workers to finish.
type WorkerProgress struct {
	Phase        phase
	LastPosition int
	NeedsAppend  bool
	LastError    string
}

// progressTable is an xsync.Map wrapper: every row is written by a
// different worker goroutine, and Snapshot may read the table concurrently
// with those writes — the many-writer, concurrent-reader shape xsync.Map
// is built for, unlike Ch10Context's own maps,
// which are single-writer for the life of one worker and stay plain Go
// maps.
type progressTable struct {
	rows *xsync.Map[int, *WorkerProgress]
}

// newProgressTable returns a progressTable pre-populated with a pending
// row per worker.
func newProgressTable(workerCount int) *progressTable {
	rows := xsync.NewMap[int, *WorkerProgress]()
	for i := 0; i < workerCount; i++ {
		rows.Store(i, &WorkerProgress{Phase: phasePending})
	}
	return &progressTable{rows: rows}
}

// update records a worker's terminal result.
func (t *progressTable) update(workerIndex int, res worker.Result) {
	row := &WorkerProgress{Phase: phaseDone, LastPosition: res.LastPosition, NeedsAppend: res.NeedsAppendPass}
	if res.Err != nil {
		row.LastError = res.Err.Error()
	}
	t.rows.Store(workerIndex, row)
}

// Snapshot returns a copy of the current progress table, for a caller
// polling run state mid-flight.
func (t *progressTable) Snapshot() map[int]WorkerProgress {
	out := make(map[int]WorkerProgress)
	t.rows.Range(func(k int, v *WorkerProgress) bool {
		out[k] = *v
		return true
	})
	return out
}
