// Package staging holds the ordered set of local files waiting to be
// published, together with their per-file lifecycle.
package staging

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Status is the lifecycle state of a staged file.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusCommitting Status = "committing"
	StatusCommitted  Status = "committed"
	StatusError      Status = "error"
)

// Event drives a status transition.
type Event string

const (
	EventGenerate     Event = "generate"
	EventGenerateDone Event = "generate-done"
	EventPublish      Event = "publish"
	EventPublished    Event = "published"
	EventFailed       Event = "failed"
	EventRearm        Event = "rearm"
)

// ErrIllegalTransition is returned when an event is not accepted by the
// file's current status.
var ErrIllegalTransition = errors.New("illegal status transition")

var transitions = map[Status]map[Event]Status{
	StatusIdle: {
		EventGenerate: StatusGenerating,
		EventPublish:  StatusCommitting,
	},
	StatusGenerating: {
		EventGenerateDone: StatusIdle,
	},
	StatusCommitting: {
		EventPublished: StatusCommitted,
		EventFailed:    StatusError,
	},
	StatusError: {
		EventRearm: StatusIdle,
	},
}

// Next returns the status reached from s on ev.
func Next(s Status, ev Event) (Status, error) {
	if to, ok := transitions[s][ev]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s --(%s)-->", ErrIllegalTransition, s, ev)
}

// File is one locally captured file.
type File struct {
	ID            int64
	Name          string
	Path          string
	Content       []byte
	Status        Status
	CommitType    string
	CommitMessage string
	LastError     string
}

// Equal reports whether f and o hold the same values.
func (f File) Equal(o File) bool {
	return f.ID == o.ID &&
		f.Name == o.Name &&
		f.Path == o.Path &&
		bytes.Equal(f.Content, o.Content) &&
		f.Status == o.Status &&
		f.CommitType == o.CommitType &&
		f.CommitMessage == o.CommitMessage &&
		f.LastError == o.LastError
}

// Editable reports whether user edits are accepted in the current status.
// Editing an errored file re-arms it to idle.
func (f *File) Editable() bool {
	return f.Status == StatusIdle || f.Status == StatusError
}

func (f *File) apply(ev Event) error {
	to, err := Next(f.Status, ev)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	f.Status = to
	return nil
}

// ValidationError reports a staged file that cannot enter a publish batch.
// An empty Reason means the field is missing.
type ValidationError struct {
	Name   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s is required", e.Name, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", e.Name, e.Field, e.Reason)
}

// CleanPath trims p, drops a leading slash and collapses duplicate
// separators and "." segments. An empty or root-only path yields "".
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(p), "/")
}

// ValidatePath checks that p is a clean path inside the repository.
func ValidatePath(name, p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return &ValidationError{Name: name, Field: "path"}
	case p == "." || p == ".." || strings.HasPrefix(p, "../"):
		return &ValidationError{Name: name, Field: "path", Reason: fmt.Sprintf("%q is outside the repository", p)}
	case p != CleanPath(p):
		return &ValidationError{Name: name, Field: "path", Reason: fmt.Sprintf("%q is not a relative path, use %q", p, CleanPath(p))}
	}
	return nil
}

// Validate checks the fields a file needs before it may be published.
func Validate(f File) error {
	if err := ValidatePath(f.Name, f.Path); err != nil {
		return err
	}
	if strings.TrimSpace(f.CommitMessage) == "" {
		return &ValidationError{Name: f.Name, Field: "commit message"}
	}
	return nil
}
