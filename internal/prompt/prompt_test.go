package prompt

import (
	"strings"
	"testing"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
)

func TestSystemListsClosedSets(t *testing.T) {
	t.Parallel()

	b, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sys := b.System()
	for _, c := range domain.AllCategories() {
		if !strings.Contains(sys, string(c)) {
			t.Errorf("system prompt missing category %q", c)
		}
	}
	if !strings.Contains(sys, "low | medium | high | critical") {
		t.Error("system prompt missing severity list")
	}
	if strings.Contains(sys, "{{") {
		t.Error("system prompt has unrendered template actions")
	}
}

func TestUserPrompt(t *testing.T) {
	t.Parallel()

	b, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	cfg := domain.GenerationConfig{
		Count:              5,
		Categories:         []domain.Category{domain.CategoryDirectOverride, domain.CategoryMultiTurn},
		Difficulty:         domain.DifficultyExpert,
		CustomInstructions: "  Focus on healthcare chatbots.  ",
	}

	got, err := b.User(cfg, 1, []string{"Instruction reset", "Authority claim"})
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}

	for _, want := range []string{
		"Category: Multi-turn Manipulation",
		"Difficulty: expert",
		"Example 2 of 5",
		"Difficulty guidance: " + domain.DifficultyExpert.Guidance(),
		"- Instruction reset\n- Authority claim",
		"Additional instructions from the researcher: Focus on healthcare chatbots.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("user prompt missing %q:\n%s", want, got)
		}
	}
}

func TestUserPromptOmitsEmptySections(t *testing.T) {
	t.Parallel()

	b, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	cfg := domain.GenerationConfig{Count: 1, Categories: []domain.Category{domain.CategoryPromptInjection}}

	got, err := b.User(cfg, 0, nil)
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if strings.Contains(got, "already used") {
		t.Error("expected no history section")
	}
	if strings.Contains(got, "Additional instructions") {
		t.Error("expected no instructions section")
	}
	if !strings.Contains(got, "Difficulty: intermediate") {
		t.Errorf("expected default difficulty:\n%s", got)
	}
}

func TestCustomUserTemplate(t *testing.T) {
	t.Parallel()

	if _, err := New(withUserTemplate("{{.Broken")); err == nil {
		t.Fatal("expected a parse error")
	}

	b, err := New(withUserTemplate("{{.CategoryLabel}}/{{.Number}}"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := b.User(domain.GenerationConfig{Count: 3, Categories: []domain.Category{domain.CategorySocialEngineering}}, 2, nil)
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if got != "Social Engineering/3" {
		t.Fatalf("unexpected render: %q", got)
	}
}
