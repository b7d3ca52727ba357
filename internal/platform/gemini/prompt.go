package gemini

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

// DefaultLanguage is the language continuations are written in when none is configured.
const DefaultLanguage = "Portuguese"

//go:embed prompts/continuation.tmpl
var defaultTemplateText string

// promptData is the data passed to the prompt template.
type promptData struct {
	Text     string
	Language string
}

// DefaultTemplate returns the embedded continuation template.
func DefaultTemplate() *template.Template {
	return template.Must(template.New("continuation").Option("missingkey=error").Parse(defaultTemplateText))
}

// LoadTemplate reads and parses a prompt template file. The template receives
// .Text (the text to continue) and .Language.
func LoadTemplate(path string) (*template.Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template from %s: %w", path, err)
	}

	tmpl, err := template.New("continuation").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	// A template that cannot render sample data is rejected at load time.
	if _, err := render(tmpl, promptData{Text: "sample", Language: DefaultLanguage}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
