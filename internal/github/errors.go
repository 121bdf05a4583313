package github

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// ErrNotFound matches any remote 404.
var ErrNotFound = errors.New("not found")

// ErrMissingToken is returned when a client is built without a token.
var ErrMissingToken = errors.New("GitHub token not set, run: gpush auth token <TOKEN>")

// RemoteError is a non-2xx answer from the API. Message is the remote's own
// message, unmodified.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GitHub API request failed: %s", http.StatusText(e.StatusCode))
	}
	return e.Message
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// wrapError converts go-github error types into RemoteError.
func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		return fmt.Errorf("%s: %w", action, &RemoteError{StatusCode: statusOf(er.Response), Message: er.Message})
	}
	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("%s: %w", action, &RemoteError{StatusCode: statusOf(rl.Response), Message: rl.Message})
	}
	return fmt.Errorf("%s: %w", action, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
