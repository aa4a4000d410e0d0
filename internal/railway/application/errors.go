package application

import (
	"errors"
	"fmt"
)

// Stage names a step of trip reconciliation.
type Stage string

const (
	StageOperator    Stage = "operator"
	StageLine        Stage = "line"
	StageStations    Stage = "stations"
	StageTrain       Stage = "train"
	StageStopovers   Stage = "stopovers"
	StageRemarks     Stage = "remarks"
	StageComposition Stage = "composition"
)

// StageError is a reconciliation failure tagged with the step it broke.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

var (
	errNoLine        = errors.New("trip has no line")
	errNoOperator    = errors.New("line has no operator")
	errNoEndpoints   = errors.New("trip has no origin or destination")
	errNoServiceDate = errors.New("trip has no planned departure")
)
