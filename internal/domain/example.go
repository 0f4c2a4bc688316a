// Package domain contains core domain types for the dataset generator.
package domain

// Category is one of the closed set of attack families a record can belong to.
type Category string

const (
	CategoryDirectOverride      Category = "direct_override"
	CategoryRoleplayInjection   Category = "roleplay_injection"
	CategoryEncodingObfuscation Category = "encoding_obfuscation"
	CategoryMultiTurn           Category = "multi_turn"
	CategoryPromptInjection     Category = "prompt_injection"
	CategorySocialEngineering   Category = "social_engineering"
	CategoryFewShotManipulation Category = "few_shot_manipulation"
	CategoryGodmodeCompliance   Category = "godmode_compliance"
)

// CategoryInfo carries the display metadata for a category.
type CategoryInfo struct {
	ID          Category `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

var categories = []CategoryInfo{
	{CategoryDirectOverride, "Direct Instruction Override", "Attempts to directly override system instructions or safety guidelines"},
	{CategoryRoleplayInjection, "Role-play / Character Injection", "Uses fictional characters or scenarios to bypass safety filters"},
	{CategoryEncodingObfuscation, "Encoding / Obfuscation", "Encodes harmful requests using Base64, ROT13, leetspeak and similar schemes"},
	{CategoryMultiTurn, "Multi-turn Manipulation", "Gradually escalates across multiple conversation turns"},
	{CategoryPromptInjection, "Prompt Injection", "Injects instructions disguised as data or context"},
	{CategorySocialEngineering, "Social Engineering", "Manipulates through emotional appeals, authority claims or urgency"},
	{CategoryFewShotManipulation, "Few-shot Manipulation", "Provides examples that establish a pattern leading to harmful output"},
	{CategoryGodmodeCompliance, "Godmode Compliance", "Convinces the model that an unrestricted special mode has been enabled"},
}

// AllCategories returns every known category in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = c.ID
	}
	return out
}

// Categories returns the metadata for every known category.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, info := range categories {
		if info.ID == c {
			return true
		}
	}
	return false
}

// Label returns the human readable name, or the raw value for unknown categories.
func (c Category) Label() string {
	for _, info := range categories {
		if info.ID == c {
			return info.Label
		}
	}
	return string(c)
}

// Severity is the ordered risk rating of a record.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns the severity levels from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// GeneratedExample is one dataset row.
type GeneratedExample struct {
	ID               string   `json:"id"`
	Category         Category `json:"category"`
	Subcategory      string   `json:"subcategory"`
	AttackTechnique  string   `json:"attackTechnique"`
	AttackPrompt     string   `json:"attackPrompt"`
	TargetResponse   string   `json:"targetResponse"`
	DefendedResponse string   `json:"defendedResponse"`
	AttackSuccess    bool     `json:"attackSuccess"`
	Severity         Severity `json:"severity"`
	Notes            string   `json:"notes"`
}
