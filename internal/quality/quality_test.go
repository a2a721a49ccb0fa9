package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denizaktas/beautyharvest/internal/models"
	"github.com/denizaktas/beautyharvest/internal/sites"
)

func profile() *sites.Profile {
	return &sites.Profile{
		Name:    "teststore",
		BaseURL: "https://shop.example.com",
		Selectors: map[string]sites.SelectorChain{
			"name":  {"h1"},
			"price": {"span.price"},
		},
	}
}

func record(category string, fields map[string]string, lists map[string][]string) *models.RawFieldMap {
	if fields == nil {
		fields = map[string]string{}
	}
	if lists == nil {
		lists = map[string][]string{}
	}
	return &models.RawFieldMap{
		URL:            "https://shop.example.com/urun-p-1",
		Site:           "teststore",
		Category:       category,
		Fields:         fields,
		Lists:          lists,
		SourceSelector: map[string]string{},
		ScrapedAt:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestValidate_FullRecordAccepted(t *testing.T) {
	fm := record("cilt_bakimi", map[string]string{
		"name":        "Nemlendirici Yüz Kremi",
		"price":       "199,90 TL",
		"description": "Kuru ciltler için yoğun nem.",
		"usage":       "Sabah ve akşam uygulayın.",
	}, map[string][]string{
		"ingredients": {"Aqua", "Glycerin"},
	})

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	assert.Equal(t, models.DecisionAccept, report.Decision)
	assert.Equal(t, 84, report.Score, "base 60 plus three optionals at 8 each")
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.MissingRequired)
	assert.True(t, report.Acceptable())
}

func TestValidate_MissingRequiredRejects(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		missing []string
	}{
		{
			name:    "no name",
			fields:  map[string]string{"price": "99 TL", "description": "x", "usage": "y"},
			missing: []string{"name"},
		},
		{
			name:    "no price",
			fields:  map[string]string{"name": "Ruj", "description": "x"},
			missing: []string{"price"},
		},
		{
			name:    "neither",
			fields:  map[string]string{"description": "x"},
			missing: []string{"name", "price"},
		},
	}

	v := NewValidator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Validate(record("makyaj", tt.fields, nil), profile())

			assert.Equal(t, models.DecisionReject, report.Decision)
			assert.LessOrEqual(t, report.Score, 30, "missing required fields cap the score")
			assert.Equal(t, tt.missing, report.MissingRequired)
			assert.False(t, report.Acceptable())
		})
	}
}

func TestValidate_FallbackPriceWithMissingName(t *testing.T) {
	// Price resolved via a fallback selector but the name chain never
	// matched: still a rejection, the fallback source changes nothing.
	fm := record("makyaj", map[string]string{"price": "149,90 TL"}, nil)
	fm.SourceSelector["price"] = "div.price-fallback"

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	assert.Equal(t, models.DecisionReject, report.Decision)
	assert.Equal(t, []string{"name"}, report.MissingRequired)
}

func TestValidate_BareRecordAcceptedWithWarnings(t *testing.T) {
	fm := record("makyaj", map[string]string{
		"name":  "Mat Ruj",
		"price": "89,90 TL",
	}, nil)

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	assert.Equal(t, models.DecisionAcceptWithWarnings, report.Decision,
		"required-only record sits between the thresholds")
	assert.Equal(t, 60, report.Score)
}

func TestValidate_WarningDowngradesAccept(t *testing.T) {
	fm := record("makyaj", map[string]string{
		"name":        "Mat Ruj",
		"price":       "fiyat için tıklayın",
		"description": "x", "usage": "y", "benefits": "z",
	}, nil)

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, models.DecisionAcceptWithWarnings, report.Decision,
		"a warning forces the warned decision even above the accept threshold")
	assert.GreaterOrEqual(t, report.Score, 80)
}

func TestValidate_CategoryMismatchPenalty(t *testing.T) {
	fm := record("makyaj", map[string]string{
		"name":  "Onarıcı Şampuan 400ml",
		"price": "129,90 TL",
	}, nil)

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	assert.Equal(t, models.DecisionReject, report.Decision,
		"penalty drops a bare record below the reject threshold")
	assert.Equal(t, 35, report.Score)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "makyaj")
}

func TestValidate_CategoryMismatchWithRichRecordWarns(t *testing.T) {
	fm := record("makyaj", map[string]string{
		"name":        "Onarıcı Şampuan 400ml",
		"price":       "129,90 TL",
		"description": "a", "usage": "b", "benefits": "c", "features": "d", "ingredients": "e",
	}, nil)

	report := NewValidator(DefaultConfig()).Validate(fm, profile())

	assert.Equal(t, 75, report.Score, "100 capped minus the category penalty")
	assert.Equal(t, models.DecisionAcceptWithWarnings, report.Decision)
}

func TestValidate_NoExcludedKeywordsNeverRejectsCompleteRecord(t *testing.T) {
	categories := []string{"makyaj", "cilt_bakimi", "parfum", "sac_bakimi", "vucut_bakimi", "bilinmeyen"}
	v := NewValidator(DefaultConfig())

	for _, cat := range categories {
		fm := record(cat, map[string]string{
			"name":  "Nötr Ürün 01",
			"price": "49,90 TL",
		}, nil)

		report := v.Validate(fm, profile())
		assert.NotEqual(t, models.DecisionReject, report.Decision, "category %s", cat)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	fm := record("makyaj", map[string]string{
		"name":  "Onarıcı Şampuan",
		"price": "99 TL",
	}, nil)

	v := NewValidator(DefaultConfig())
	first := v.Validate(fm, profile())
	second := v.Validate(fm, profile())

	assert.Equal(t, first, second)
}
