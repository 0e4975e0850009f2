package model

import "fmt"

// FetchStage identifies which step of the portal round-trip failed.
type FetchStage string

const (
	StageToken  FetchStage = "token"
	StageSubmit FetchStage = "submit"
	StageParse  FetchStage = "parse"
)

// FetchError wraps a retrieval failure with the stage it happened in.
// Callers only branch on nil/non-nil; the stage is for the logs.
type FetchError struct {
	Stage      FetchStage
	CustomerNo string
	Err        error
}

func (e *FetchError) Error() string {
	if e.CustomerNo == "" {
		return fmt.Sprintf("portal %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("portal %s for %s: %v", e.Stage, e.CustomerNo, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
