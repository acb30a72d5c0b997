package pipeline

import (
	"errors"
	"fmt"
)

// Stage names used in errors, logs, and journal entries.
const (
	StageLoad       = "load"
	StagePreprocess = "preprocess"
	StageExtract    = "extract"
	StageSave       = "save"
	StageAssess     = "assess"
	StagePersist    = "persist"
)

// StageError tags a failure with the pipeline stage it occurred in. Stage
// failures abort the run for that file only; the error text is what lands
// in the error marker.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage name an error is tagged with, or "" when the
// error did not come from a pipeline stage.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
