package staging

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/samzong/gpush/internal/committype"
)

// ErrNothingToPublish is returned when no idle file passes validation.
var ErrNothingToPublish = errors.New("no staged files are ready to publish")

// ErrNotFound is returned when a reference matches no staged file.
var ErrNotFound = errors.New("staged file not found")

// PathLookup resolves a basename to a known remote path.
type PathLookup interface {
	Lookup(basename string) (string, bool)
}

// Store is the ordered set of staged files. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	files  []*File
	nextID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// InterruptedPublish is recorded on files that were saved mid-publish.
const InterruptedPublish = "publish was interrupted; check the branch before retrying"

// Restore replaces the store content with previously saved files. Unless
// inFlight is set, files saved while generating are put back to idle since
// the suggestion that was running did not survive its process, and files
// saved while committing are moved to error since the outcome of that
// publish is unknown. inFlight means another process still owns the
// staged files, so their statuses are live and kept as they are.
func (s *Store) Restore(files []File, inFlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = make([]*File, 0, len(files))
	s.nextID = 1
	for i := range files {
		f := files[i]
		switch {
		case inFlight:
		case f.Status == StatusGenerating:
			f.Status = StatusIdle
		case f.Status == StatusCommitting:
			f.Status = StatusError
			f.LastError = InterruptedPublish
		}
		if f.ID >= s.nextID {
			s.nextID = f.ID + 1
		}
		s.files = append(s.files, &f)
	}
}

// Capture stages a new local file in idle with the default commit type.
// The path is prefilled from lookup when the basename is known remotely.
func (s *Store) Capture(name string, content []byte, lookup PathLookup) File {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &File{
		ID:         s.nextID,
		Name:       name,
		Content:    content,
		Status:     StatusIdle,
		CommitType: committype.Default,
	}
	if lookup != nil {
		if p, ok := lookup.Lookup(path.Base(name)); ok {
			f.Path = p
		}
	}
	s.nextID++
	s.files = append(s.files, f)
	return *f
}

// Files returns a copy of every staged file in order.
func (s *Store) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, *f)
	}
	return out
}

// Len returns the number of staged files.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Get returns the file with the given id.
func (s *Store) Get(id int64) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.find(id)
	if err != nil {
		return File{}, err
	}
	return *f, nil
}

// Resolve finds a file by its 1-based position or by a unique name.
func (s *Store) Resolve(ref string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(s.files) {
			return File{}, fmt.Errorf("%w: position %d", ErrNotFound, n)
		}
		return *s.files[n-1], nil
	}

	var match *File
	for _, f := range s.files {
		if f.Name != ref && f.Path != ref {
			continue
		}
		if match != nil {
			return File{}, fmt.Errorf("%q matches more than one staged file, use its position", ref)
		}
		match = f
	}
	if match == nil {
		return File{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return *match, nil
}

// Remove drops a file from the store regardless of its status.
func (s *Store) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// Clear removes every staged file.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}

// SetPath changes the remote path of a file. The path is normalised with
// CleanPath.
func (s *Store) SetPath(id int64, p string) error {
	return s.edit(id, func(f *File) { f.Path = CleanPath(p) })
}

// SetCommitType changes the commit type of a file.
func (s *Store) SetCommitType(id int64, t string) error {
	t = committype.Normalize(t)
	if !committype.IsValid(t) {
		return fmt.Errorf("unknown commit type %q (valid: %s)", t, strings.Join(committype.All(), ", "))
	}
	return s.edit(id, func(f *File) { f.CommitType = t })
}

// SetCommitMessage changes the commit description of a file.
func (s *Store) SetCommitMessage(id int64, msg string) error {
	return s.edit(id, func(f *File) { f.CommitMessage = strings.TrimSpace(msg) })
}

func (s *Store) edit(id int64, fn func(*File)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.find(id)
	if err != nil {
		return err
	}
	if !f.Editable() {
		return fmt.Errorf("%s: cannot edit while %s: %w", f.Name, f.Status, ErrIllegalTransition)
	}
	if f.Status == StatusError {
		if err := f.apply(EventRearm); err != nil {
			return err
		}
		f.LastError = ""
	}
	fn(f)
	return nil
}

// Rearm moves an errored file back to idle without changing its fields.
func (s *Store) Rearm(id int64) error {
	return s.edit(id, func(*File) {})
}

// BeginGenerate moves a file from idle to generating.
func (s *Store) BeginGenerate(id int64) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.find(id)
	if err != nil {
		return File{}, err
	}
	if err := f.apply(EventGenerate); err != nil {
		return File{}, err
	}
	return *f, nil
}

// FinishGenerate returns a generating file to idle. When apply is true the
// suggested type and message replace the current ones.
func (s *Store) FinishGenerate(id int64, commitType, message string, apply bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.find(id)
	if err != nil {
		return err
	}
	if err := f.apply(EventGenerateDone); err != nil {
		return err
	}
	if apply {
		f.CommitType = commitType
		f.CommitMessage = message
	}
	return nil
}

// Snapshot returns the publish batch: every idle file that passes
// validation, in store order. Idle files that fail validation are reported
// and stay idle.
func (s *Store) Snapshot() ([]File, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		batch   []File
		invalid []error
	)
	for _, f := range s.files {
		if f.Status != StatusIdle {
			continue
		}
		if err := Validate(*f); err != nil {
			invalid = append(invalid, err)
			continue
		}
		batch = append(batch, *f)
	}
	return batch, invalid
}

// MarkCommitting moves every batch file from idle to committing. Nothing is
// changed if any file refuses the transition.
func (s *Store) MarkCommitting(batch []File) error {
	return s.transitionAll(batch, EventPublish, "")
}

// MarkCommitted moves every batch file from committing to committed.
func (s *Store) MarkCommitted(batch []File) error {
	return s.transitionAll(batch, EventPublished, "")
}

// MarkFailed moves every batch file from committing to error and records
// the failure.
func (s *Store) MarkFailed(batch []File, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.transitionAll(batch, EventFailed, msg)
}

func (s *Store) transitionAll(batch []File, ev Event, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := make([]*File, 0, len(batch))
	for _, b := range batch {
		f, err := s.find(b.ID)
		if err != nil {
			return err
		}
		if _, err := Next(f.Status, ev); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		targets = append(targets, f)
	}
	for _, f := range targets {
		_ = f.apply(ev)
		if ev == EventFailed {
			f.LastError = lastErr
		}
	}
	return nil
}

// Prune removes committed files and returns how many were removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.files[:0]
	removed := 0
	for _, f := range s.files {
		if f.Status == StatusCommitted {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	s.files = kept
	return removed
}

func (s *Store) find(id int64) (*File, error) {
	for _, f := range s.files {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
}
