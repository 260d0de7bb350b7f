// SPDX-License-Identifier: EPL-2.0

package audconv

import (
	"errors"
	"fmt"

	"github.com/ik5/audconv/failure"
)

// Stage is a step of a conversion. Stages are entered in declaration order;
// StageFailed is terminal and may follow any of them.
type Stage int

const (
	StageReceived Stage = iota
	StageDecoded
	StageAnalyzedOriginal
	StageTransformed
	StageAnalyzedProcessed
	StageEncoded
	StageComplete
	StageFailed
)

var stageNames = [...]string{
	StageReceived:          "received",
	StageDecoded:           "decoded",
	StageAnalyzedOriginal:  "analyzed_original",
	StageTransformed:       "transformed",
	StageAnalyzedProcessed: "analyzed_processed",
	StageEncoded:           "encoded",
	StageComplete:          "complete",
	StageFailed:            "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is the terminal failure of a conversion.
// Stage is the stage the pipeline was trying to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("conversion failed before %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}

// Kind is a shorthand for failure.KindOf on the cause.
func (e *StageError) Kind() failure.Kind { return failure.KindOf(e.Err) }
