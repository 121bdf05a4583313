package publish

import (
	"errors"
	"fmt"

	"github.com/samzong/gpush/internal/github"
)

// Step identifies one stage of a publish.
type Step int

const (
	StepResolveTip Step = iota + 1
	StepBaseTree
	StepBlobs
	StepTree
	StepCommit
	StepUpdateRef
)

var stepNames = map[Step]string{
	StepResolveTip: "resolve branch tip",
	StepBaseTree:   "resolve base tree",
	StepBlobs:      "create blobs",
	StepTree:       "create tree",
	StepCommit:     "create commit",
	StepUpdateRef:  "update branch ref",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step %d", int(s))
}

// CommitError reports the step at which a publish stopped.
type CommitError struct {
	Step Step
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed at %s: %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// RemoteMessage returns the message supplied by the remote, or the error
// text when the failure did not come from the remote.
func (e *CommitError) RemoteMessage() string {
	var rErr *github.RemoteError
	if errors.As(e.Err, &rErr) {
		return rErr.Message
	}
	return e.Err.Error()
}

// OutcomeKnown reports whether the branch is known to be unchanged. Every
// step before the ref update leaves the branch alone; a ref update that
// failed without an answer from the remote may still have been applied.
func (e *CommitError) OutcomeKnown() bool {
	if e.Step != StepUpdateRef {
		return true
	}
	var rErr *github.RemoteError
	return errors.As(e.Err, &rErr)
}

func stepError(step Step, err error) error {
	return &CommitError{Step: step, Err: err}
}
