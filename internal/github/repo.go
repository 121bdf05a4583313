package github

import (
	"fmt"
	"net/url"
	"strings"
)

// Repo identifies a repository by owner and name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the repo is unset.
func (r Repo) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// ParseRepo accepts "owner/name", an https URL or an scp-style ssh URL.
func ParseRepo(s string) (Repo, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")
	if s == "" {
		return Repo{}, fmt.Errorf("repository is empty")
	}

	var path string
	switch {
	case strings.HasPrefix(s, "git@"):
		_, after, found := strings.Cut(s, ":")
		if !found {
			return Repo{}, fmt.Errorf("invalid SSH repository URL format: %s", s)
		}
		path = after
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil {
			return Repo{}, fmt.Errorf("invalid URL: %w", err)
		}
		path = u.Path
	default:
		path = s
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("invalid repository %q, expected owner/name", s)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}
