package pipeline

import (
	"time"

	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/internal/staging"
)

// PairOutcome is what one pair worker reports back to the activity.
type PairOutcome struct {
	Pair       staging.FilePair
	DHRID      string
	Status     recorddomain.PairStatus
	Stage      string
	Err        error
	DataSize   int64
	BinarySize int64
	Duration   time.Duration
}

func (o *PairOutcome) fail(stage string, err error) {
	if o.Err != nil {
		return
	}
	o.Status = recorddomain.PairFailed
	o.Stage = stage
	o.Err = err
}

func (o PairOutcome) Passed() bool {
	return o.Status == recorddomain.PairPassed && o.Err == nil
}

// fold adds o to the running summary. Only the goroutine that owns the
// summary calls it.
func fold(summary *recorddomain.ActivityRecord, o PairOutcome) {
	summary.TotalFiles++
	if !o.Passed() {
		summary.FailedFiles++
		return
	}
	summary.PassedFiles++
	summary.TotalXMLSize += o.DataSize
	summary.TotalPDFSize += o.BinarySize
}
