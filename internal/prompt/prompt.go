// Package prompt renders the instructions sent to the model for each attempt.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ashureev/jailbreak-datagen/internal/domain"

	_ "embed"
)

//go:embed system.txt
var systemTpl string

//go:embed user.gotmpl
var userTpl string

var (
	systemTemplate = template.Must(template.New("system").Parse(systemTpl))
	userTemplate   = template.Must(template.New("user").Parse(userTpl))
)

// Builder renders system and user prompts. The zero value is not usable;
// construct it with New.
type Builder struct {
	system string
	user   *template.Template
}

// Option configures a Builder.
type Option func(*builderConfig)

type builderConfig struct {
	userTpl string
}

// withUserTemplate replaces the embedded user prompt template.
func withUserTemplate(tpl string) Option {
	return func(c *builderConfig) {
		c.userTpl = tpl
	}
}

// New renders the system prompt once and prepares the user template.
func New(opts ...Option) (*Builder, error) {
	cfg := &builderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	user := userTemplate
	if cfg.userTpl != "" {
		t, err := template.New("user").Parse(cfg.userTpl)
		if err != nil {
			return nil, fmt.Errorf("parse user template: %w", err)
		}
		user = t
	}

	system, err := renderSystem()
	if err != nil {
		return nil, err
	}
	return &Builder{system: system, user: user}, nil
}

// System returns the rendered system prompt.
func (b *Builder) System() string {
	return b.system
}

type userData struct {
	CategoryLabel string
	Difficulty    domain.Difficulty
	Number        int
	Count         int
	Guidance      string
	History       []string
	Instructions  string
}

// User renders the prompt for the attempt with the given zero-based index.
// history lists the techniques already produced in this session.
func (b *Builder) User(cfg domain.GenerationConfig, index int, history []string) (string, error) {
	difficulty := cfg.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyIntermediate
	}

	data := userData{
		CategoryLabel: cfg.CategoryFor(index).Label(),
		Difficulty:    difficulty,
		Number:        index + 1,
		Count:         cfg.Count,
		Guidance:      difficulty.Guidance(),
		History:       history,
		Instructions:  strings.TrimSpace(cfg.CustomInstructions),
	}

	var buf bytes.Buffer
	if err := b.user.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func renderSystem() (string, error) {
	cats := make([]string, 0, len(domain.AllCategories()))
	for _, c := range domain.AllCategories() {
		cats = append(cats, string(c))
	}
	sevs := make([]string, 0, len(domain.Severities()))
	for _, s := range domain.Severities() {
		sevs = append(sevs, string(s))
	}

	var buf bytes.Buffer
	err := systemTemplate.Execute(&buf, map[string]string{
		"Categories": strings.Join(cats, " | "),
		"Severities": strings.Join(sevs, " | "),
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
