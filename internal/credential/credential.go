// Package credential holds the GitHub token and the assistant API key. A
// value reaches persistent storage only when the user has opted in.
package credential

import (
	"fmt"
	"os"
	"sync"
)

const (
	keyToken        = "credential:github_token"
	keyAssistantKey = "credential:assistant_key"
	keyPersist      = "credential:persist"
)

// Environment variables consulted when no value is held in memory.
var (
	TokenEnv        = []string{"GPUSH_GITHUB_TOKEN", "GITHUB_TOKEN"}
	AssistantKeyEnv = []string{"GPUSH_ASSISTANT_KEY", "OPENAI_API_KEY"}
)

// Backend is the persistent key-value storage. WriteValues applies every
// change or none.
type Backend interface {
	GetValue(key string) (string, bool, error)
	WriteValues(set map[string]string, remove []string) error
}

// Source tells where a credential value came from.
type Source string

const (
	SourceNone    Source = "unset"
	SourceSession Source = "session"
	SourceStored  Source = "stored"
	SourceEnv     Source = "env"
)

// Store keeps credentials in memory and mirrors them to the backend while
// persist is on. Storage holds a value if and only if persist is on and the
// value is non-empty.
type Store struct {
	backend Backend
	getenv  func(string) string

	mu           sync.Mutex
	token        string
	assistantKey string
	persist      bool
	loaded       map[string]bool
}

// New returns a Store over backend. Call Load to hydrate it.
func New(backend Backend) *Store {
	return &Store{backend: backend, getenv: os.Getenv, loaded: map[string]bool{}}
}

// Load reads the persist flag and, when it is on, the stored values.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flag, _, err := s.backend.GetValue(keyPersist)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	s.persist = flag == "true"
	if !s.persist {
		return nil
	}

	for key, dst := range map[string]*string{keyToken: &s.token, keyAssistantKey: &s.assistantKey} {
		v, ok, err := s.backend.GetValue(key)
		if err != nil {
			return fmt.Errorf("failed to load credentials: %w", err)
		}
		if ok && v != "" {
			*dst = v
			s.loaded[key] = true
		}
	}
	return nil
}

// Token returns the GitHub token, falling back to the environment.
func (s *Store) Token() string {
	v, _ := s.value(keyToken, TokenEnv)
	return v
}

// AssistantKey returns the assistant API key, falling back to the
// environment.
func (s *Store) AssistantKey() string {
	v, _ := s.value(keyAssistantKey, AssistantKeyEnv)
	return v
}

// TokenSource reports where Token comes from.
func (s *Store) TokenSource() Source {
	_, src := s.value(keyToken, TokenEnv)
	return src
}

// AssistantKeySource reports where AssistantKey comes from.
func (s *Store) AssistantKeySource() Source {
	_, src := s.value(keyAssistantKey, AssistantKeyEnv)
	return src
}

func (s *Store) value(key string, envs []string) (string, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.token
	if key == keyAssistantKey {
		v = s.assistantKey
	}
	if v != "" {
		if s.loaded[key] {
			return v, SourceStored
		}
		return v, SourceSession
	}
	for _, env := range envs {
		if e := s.getenv(env); e != "" {
			return e, SourceEnv
		}
	}
	return "", SourceNone
}

// Persist reports whether credentials are written to storage.
func (s *Store) Persist() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist
}

// SetToken sets the GitHub token. An empty token clears it. The in-memory
// value is left alone when storage fails.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(mirror(s.persist, map[string]string{keyToken: token})); err != nil {
		return err
	}
	s.token = token
	s.loaded[keyToken] = false
	return nil
}

// SetAssistantKey sets the assistant API key. An empty key clears it.
func (s *Store) SetAssistantKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(mirror(s.persist, map[string]string{keyAssistantKey: key})); err != nil {
		return err
	}
	s.assistantKey = key
	s.loaded[keyAssistantKey] = false
	return nil
}

// SetPersist turns persistence on or off. Turning it on writes the current
// non-empty values; turning it off removes every stored value. The flag and
// the values change in one write, and on failure nothing changes.
func (s *Store) SetPersist(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, remove := mirror(on, map[string]string{keyToken: s.token, keyAssistantKey: s.assistantKey})
	if on {
		set[keyPersist] = "true"
	} else {
		remove = append(remove, keyPersist)
	}
	if err := s.write(set, remove); err != nil {
		return err
	}

	s.persist = on
	if !on {
		s.loaded = map[string]bool{}
	}
	return nil
}

// mirror splits values into what storage should hold and what it should
// drop: a value is kept only while persist is on and it is non-empty.
func mirror(persist bool, values map[string]string) (set map[string]string, remove []string) {
	set = map[string]string{}
	for _, key := range []string{keyToken, keyAssistantKey} {
		v, ok := values[key]
		switch {
		case !ok:
		case persist && v != "":
			set[key] = v
		default:
			remove = append(remove, key)
		}
	}
	return set, remove
}

func (s *Store) write(set map[string]string, remove []string) error {
	if err := s.backend.WriteValues(set, remove); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
