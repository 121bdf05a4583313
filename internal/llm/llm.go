// Package llm asks an OpenAI-compatible chat model to propose a commit type
// and description for a single file change.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samzong/gpush/internal/committype"
	"github.com/samzong/gpush/internal/formatter"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
	systemPrompt   = "You are a professional Git commit message generator. You classify a single file change with a Conventional Commits type and describe it in one short imperative sentence."
)

var errMissingAPIKey = errors.New("assistant API key not set, run: gpush auth assistant-key <KEY>")

// SuggestionError reports an assistant call that failed or returned content
// that could not be used. The staged file is left untouched.
type SuggestionError struct {
	Path string
	Raw  string
	Err  error
}

func (e *SuggestionError) Error() string {
	return fmt.Sprintf("failed to suggest a message for %s: %v", e.Path, e.Err)
}

func (e *SuggestionError) Unwrap() error {
	return e.Err
}

// Suggestion is a proposed commit type and description.
type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Client.
type Options struct {
	APIKey         string
	APIBase        string
	Model          string
	Timeout        time.Duration
	PromptTemplate string
	TemplateDir    string
	Verbose        bool
	Logger         io.Writer
}

// Client wraps the chat completion API.
type Client struct {
	opts      Options
	completer chatCompleter
}

// NewClient builds a client. A missing API key is reported on the first call.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	c := &Client{opts: opts}
	if opts.APIKey != "" {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.APIBase != "" {
			cfg.BaseURL = opts.APIBase
		}
		c.completer = openai.NewClientWithConfig(cfg)
	}
	return c
}

func (c *Client) logf(format string, args ...any) {
	if c.opts.Verbose && c.opts.Logger != nil {
		fmt.Fprintf(c.opts.Logger, format+"\n", args...)
	}
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.completer == nil {
		return "", errMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	c.logf("llm: model=%s messages=%d", c.opts.Model, len(messages))
	resp, err := c.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.opts.Model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to call LLM: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Suggest proposes a commit type and description for the change of path
// from oldContent to newContent. An empty oldContent means a new file.
func (c *Client) Suggest(ctx context.Context, path, oldContent, newContent string) (Suggestion, error) {
	prompt, err := formatter.BuildSuggestionPrompt(c.opts.PromptTemplate, c.opts.TemplateDir, path, oldContent, newContent)
	if err != nil {
		return Suggestion{}, &SuggestionError{Path: path, Err: err}
	}

	raw, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return Suggestion{}, &SuggestionError{Path: path, Err: err}
	}

	s, err := ParseSuggestion(raw)
	if err != nil {
		return Suggestion{}, &SuggestionError{Path: path, Raw: raw, Err: err}
	}
	return s, nil
}

// ParseSuggestion extracts the JSON object from a model reply. Markdown
// fences and surrounding prose are tolerated; an unknown type is not.
func ParseSuggestion(raw string) (Suggestion, error) {
	body := extractJSON(raw)
	if body == "" {
		return Suggestion{}, errors.New("response contains no JSON object")
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return Suggestion{}, fmt.Errorf("failed to parse response: %w", err)
	}

	s.Type = committype.Normalize(s.Type)
	if !committype.IsValid(s.Type) {
		return Suggestion{}, fmt.Errorf("unknown commit type %q", s.Type)
	}

	msg := strings.TrimSpace(s.Message)
	// Some models repeat the prefix inside the description.
	if t, _, desc, ok := committype.ParseSubject(msg); ok && committype.IsValid(t) {
		msg = desc
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		return Suggestion{}, errors.New("response has an empty message")
	}
	s.Message = msg
	return s, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// TestConnection sends a trivial prompt to verify key, endpoint and model.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "ping"},
	})
	return err
}

// Model returns the model in use.
func (c *Client) Model() string {
	return c.opts.Model
}
