package quality

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

// Config holds the scoring constants. They live in one place so the policy
// stays documented and adjustable without touching the scoring logic.
type Config struct {
	// BaseScore is granted when all required fields are present.
	BaseScore int
	// OptionalIncrement is added per present optional field.
	OptionalIncrement int
	// RequiredMissingCap caps the score when any required field is absent.
	RequiredMissingCap int
	// CategoryPenalty is subtracted when the record matches an excluded
	// keyword for its category.
	CategoryPenalty int
	// AcceptThreshold and WarnThreshold gate the three decisions.
	AcceptThreshold int
	WarnThreshold   int
}

func DefaultConfig() Config {
	return Config{
		BaseScore:          60,
		OptionalIncrement:  8,
		RequiredMissingCap: 30,
		CategoryPenalty:    25,
		AcceptThreshold:    80,
		WarnThreshold:      60,
	}
}

// Validator scores extracted records. Validate is a pure function of its
// inputs: the same record and profile always yield an identical report.
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate scores one RawFieldMap against its profile and category rules.
// Rejection is a normal outcome, never an error.
func (v *Validator) Validate(fm *models.RawFieldMap, profile *sites.Profile) models.QualityReport {
	var missing []string
	for _, field := range models.RequiredFields {
		if !fm.Has(field) {
			missing = append(missing, field)
		}
	}
	if fm.URL == "" {
		missing = append(missing, "link")
	}
	sort.Strings(missing)

	score := v.cfg.BaseScore
	for _, field := range models.OptionalFields {
		if fm.Has(field) {
			score += v.cfg.OptionalIncrement
		}
	}
	if score > 100 {
		score = 100
	}

	var warnings []string

	if price := fm.Text(models.FieldPrice); price != "" && !hasDigit(price) {
		warnings = append(warnings, fmt.Sprintf("price %q contains no digits", price))
	}

	rule := sites.RuleFor(fm.Category)
	categoryText := strings.Join([]string{
		fm.Text(models.FieldName),
		fm.Text(models.FieldCategory),
		fm.Text(models.FieldDescription),
	}, " ")
	if !rule.Matches(categoryText) {
		score -= v.cfg.CategoryPenalty
		warnings = append(warnings, fmt.Sprintf("record matches excluded keywords for category %q", fm.Category))
	}

	if score < 0 {
		score = 0
	}
	sort.Strings(warnings)

	report := models.QualityReport{
		Score:           score,
		MissingRequired: missing,
		Warnings:        warnings,
	}

	switch {
	case len(missing) > 0:
		if report.Score > v.cfg.RequiredMissingCap {
			report.Score = v.cfg.RequiredMissingCap
		}
		report.Decision = models.DecisionReject
	case report.Score < v.cfg.WarnThreshold:
		report.Decision = models.DecisionReject
	case report.Score >= v.cfg.AcceptThreshold && len(warnings) == 0:
		report.Decision = models.DecisionAccept
	default:
		report.Decision = models.DecisionAcceptWithWarnings
	}

	return report
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
