package formatter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/samzong/gpush/internal/committype"
	"gopkg.in/yaml.v3"
)

const contentPromptLimit = 4000

const truncatedMarker = "...(content is too long, truncated)"

type PromptTemplate struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

type TemplateData struct {
	Path       string
	Name       string
	OldContent string
	NewContent string
	Types      string
	IsNewFile  bool
}

var builtinTemplates = map[string]string{
	"default": `You are reviewing a change to the file {{.Path}}.
{{if .IsNewFile}}The file does not exist yet in the repository.
{{else}}Previous content:
{{.OldContent}}
{{end}}
New content:
{{.NewContent}}

Pick the most appropriate Conventional Commits type from: {{.Types}}.
Write a concise description (no more than 72 characters, imperative mood, no type prefix, no issue numbers).
Respond with a single JSON object and nothing else: {"type": "<type>", "message": "<description>"}`,

	"detailed": `As a careful reviewer, analyse the change to {{.Path}} and classify it.
{{if .IsNewFile}}This is a new file.
{{else}}Previous content:
{{.OldContent}}
{{end}}
New content:
{{.NewContent}}

Rules:
1. The type must be one of: {{.Types}}.
   - feat: new feature
   - fix: bug fix
   - docs: documentation changes
   - style: formatting only
   - refactor: neither a fix nor a feature
   - perf: performance improvements
   - test: adding or correcting tests
   - chore, build, ci, revert: maintenance
2. The message describes what changed, starts with a verb, and stays under 72 characters.
3. Do not repeat the type or a scope in the message.

Respond with a single JSON object and nothing else: {"type": "<type>", "message": "<description>"}`,
}

// GetPromptTemplate resolves a builtin name, a template file path, or a
// name inside customDir (".yaml" is appended when no extension is given).
func GetPromptTemplate(templateName, customDir string) (string, error) {
	if tpl, ok := builtinTemplates[templateName]; ok {
		return tpl, nil
	}

	if _, err := os.Stat(templateName); err == nil {
		return readTemplateFile(templateName)
	}

	if customDir != "" {
		customPath := filepath.Join(customDir, templateName)
		if filepath.Ext(customPath) == "" {
			customPath += ".yaml"
		}
		if _, err := os.Stat(customPath); err == nil {
			return readTemplateFile(customPath)
		}
	}

	return "", fmt.Errorf("could not find prompt template: %s", templateName)
}

func readTemplateFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read template file %s: %w", path, err)
	}

	var tpl PromptTemplate
	if err := yaml.Unmarshal(content, &tpl); err != nil || tpl.Template == "" {
		return string(content), nil
	}
	return tpl.Template, nil
}

func RenderTemplate(templateContent string, data TemplateData) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("template parsing error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template rendering error: %w", err)
	}

	return buf.String(), nil
}

func GetBuiltinTemplates() map[string]string {
	return builtinTemplates
}

// BuildSuggestionPrompt renders the prompt sent to the text-generation
// service for one file. Unknown templates fall back to the default one.
func BuildSuggestionPrompt(templateName, customDir, path, oldContent, newContent string) (string, error) {
	if templateName == "" {
		templateName = "default"
	}
	tpl, err := GetPromptTemplate(templateName, customDir)
	if err != nil {
		tpl = builtinTemplates["default"]
	}

	data := TemplateData{
		Path:       path,
		Name:       filepath.Base(path),
		OldContent: limitContent(oldContent),
		NewContent: limitContent(newContent),
		Types:      strings.Join(committype.All(), ", "),
		IsNewFile:  oldContent == "",
	}
	return RenderTemplate(tpl, data)
}

func limitContent(s string) string {
	if len(s) <= contentPromptLimit {
		return s
	}
	return truncateToValidUTF8(s, contentPromptLimit) + truncatedMarker
}

func truncateToValidUTF8(input string, maxBytes int) string {
	if len(input) <= maxBytes {
		return input
	}

	end := maxBytes
	for end > 0 && !utf8.ValidString(input[:end]) {
		end--
	}

	return input[:end]
}
