package chat

import (
	_ "embed"
	"strings"
	"text/template"
	"time"
)

//go:embed prompts/system.tmpl
var systemPromptText string

var systemPrompt = template.Must(template.New("system").Parse(systemPromptText))

type promptData struct {
	Date     string
	Excerpts []string
}

func renderSystemPrompt(now time.Time, excerpts []string) (string, error) {
	var b strings.Builder
	err := systemPrompt.Execute(&b, promptData{Date: now.Format("2006-01-02"), Excerpts: excerpts})
	return b.String(), err
}
