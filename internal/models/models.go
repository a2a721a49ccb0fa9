package models

import (
	"strings"
	"time"
)

// DiscoveryPhase identifies which strategy of the discovery cascade produced
// a URL. Lower values are stronger (more reliable) phases.
type DiscoveryPhase int

const (
	PhaseDirectSelector DiscoveryPhase = iota + 1
	PhaseScriptEvaluation
	PhaseAggressiveFallback
	PhaseEmergencyExtraction
)

func (p DiscoveryPhase) String() string {
	switch p {
	case PhaseDirectSelector:
		return "direct_selector"
	case PhaseScriptEvaluation:
		return "script_evaluation"
	case PhaseAggressiveFallback:
		return "aggressive_fallback"
	case PhaseEmergencyExtraction:
		return "emergency_extraction"
	default:
		return "unknown"
	}
}

// DiscoveredURL is a candidate product URL found during a discovery run.
// Phase records the phase that first found the URL; a URL already present in
// the run's dedup set is never re-emitted by a weaker phase.
type DiscoveredURL struct {
	URL        string         `json:"url"`
	Phase      DiscoveryPhase `json:"discovery_phase"`
	Confidence float64        `json:"confidence"`
}

// Field names used across site profiles. A profile may configure any subset;
// list fields are collected as sequences, the rest as single strings.
const (
	FieldName        = "name"
	FieldBrand       = "brand"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldIngredients = "ingredients"
	FieldFeatures    = "features"
	FieldBenefits    = "benefits"
	FieldUsage       = "usage"
	FieldImages      = "images"
	FieldReviews     = "reviews"
	FieldCategory    = "category"

	// Discovery-only selectors, never extracted as product fields.
	FieldProductLink = "product_link"
	FieldNextPage    = "next_page"
)

// RequiredFields must be present for a record to be usable. The product link
// itself is the third required value; it is carried in RawFieldMap.URL.
var RequiredFields = []string{FieldName, FieldPrice}

// OptionalFields each contribute a fixed score increment when present.
var OptionalFields = []string{FieldDescription, FieldIngredients, FieldFeatures, FieldBenefits, FieldUsage}

// ListFields are collected by applying the winning selector once and
// splitting its node set into a sequence.
var ListFields = map[string]bool{
	FieldIngredients: true,
	FieldFeatures:    true,
	FieldBenefits:    true,
	FieldReviews:     true,
	FieldImages:      true,
}

// RawFieldMap is the result of extracting one DiscoveredURL. Absent fields
// are simply missing from the maps; SourceSelector records which fallback
// selector produced each present field. Immutable once produced.
type RawFieldMap struct {
	URL            string              `json:"url"`
	Site           string              `json:"site"`
	Category       string              `json:"category"`
	Fields         map[string]string   `json:"fields"`
	Lists          map[string][]string `json:"lists"`
	SourceSelector map[string]string   `json:"source_selector"`
	ScrapedAt      time.Time           `json:"scraped_at"`
}

// Has reports whether a field was extracted, either as text or as a list.
func (m *RawFieldMap) Has(field string) bool {
	if v, ok := m.Fields[field]; ok && v != "" {
		return true
	}
	return len(m.Lists[field]) > 0
}

// Text returns the extracted text for a field. List fields are joined with a
// space so keyword checks can treat every field uniformly.
func (m *RawFieldMap) Text(field string) string {
	if v, ok := m.Fields[field]; ok {
		return v
	}
	if vs, ok := m.Lists[field]; ok {
		return strings.Join(vs, " ")
	}
	return ""
}

// Decision is the validator's verdict for one extracted record.
type Decision int

const (
	DecisionAccept Decision = iota + 1
	DecisionAcceptWithWarnings
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionAccept:
		return "accept"
	case DecisionAcceptWithWarnings:
		return "accept_with_warnings"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// QualityReport is the deterministic score and decision for one RawFieldMap.
type QualityReport struct {
	Score           int      `json:"score"`
	Decision        Decision `json:"decision"`
	MissingRequired []string `json:"missing_required_fields,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Acceptable reports whether downstream collaborators should consume the
// record. A rejection is a normal terminal outcome, not an error.
func (r QualityReport) Acceptable() bool {
	return r.Decision == DecisionAccept || r.Decision == DecisionAcceptWithWarnings
}
