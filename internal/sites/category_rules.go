package sites

import "strings"

// CategoryRule filters discovered URLs and extracted records by keyword.
// MustContain keywords boost matching URLs; MustNotContain keywords mark a
// record as off-category.
type CategoryRule struct {
	MustContain    []string
	MustNotContain []string
	Boost          float64
}

var categoryRules = map[string]CategoryRule{
	"makyaj": {
		MustContain:    []string{"makyaj", "ruj", "maskara", "fondoten", "far", "allik", "eyeliner", "kapatici", "pudra"},
		MustNotContain: []string{"sampuan", "parfum", "deodorant"},
		Boost:          0.1,
	},
	"cilt_bakimi": {
		MustContain:    []string{"cilt", "serum", "nemlendirici", "temizleyici", "tonik", "maske", "krem", "peeling"},
		MustNotContain: []string{"sac", "sampuan", "oje"},
		Boost:          0.1,
	},
	"parfum": {
		MustContain:    []string{"parfum", "edp", "edt", "eau de", "kolonya", "esans"},
		MustNotContain: []string{"sampuan", "ruj", "krem"},
		Boost:          0.15,
	},
	"sac_bakimi": {
		MustContain:    []string{"sac", "sampuan", "krem", "maske", "serum", "kepek", "boya"},
		MustNotContain: []string{"cilt", "ruj", "parfum"},
		Boost:          0.1,
	},
	"vucut_bakimi": {
		MustContain:    []string{"vucut", "dus jeli", "losyon", "deodorant", "sabun", "el kremi"},
		MustNotContain: []string{"makyaj", "maskara"},
		Boost:          0.1,
	},
}

// RuleFor returns the keyword rule for a category. Unknown categories get an
// empty rule, which matches everything and penalizes nothing.
func RuleFor(category string) CategoryRule {
	return categoryRules[normalizeKeyword(category)]
}

// Matches reports whether text is compatible with the rule: it must not
// contain any excluded keyword. Empty rules match everything.
func (r CategoryRule) Matches(text string) bool {
	t := normalizeKeyword(text)
	for _, kw := range r.MustNotContain {
		if strings.Contains(t, kw) {
			return false
		}
	}
	return true
}

// ScoreURL returns a confidence adjustment for a discovered URL: the boost
// when a MustContain keyword appears in the URL, zero otherwise and a
// negative boost when an excluded keyword appears.
func (r CategoryRule) ScoreURL(url string) float64 {
	u := normalizeKeyword(url)
	for _, kw := range r.MustNotContain {
		if strings.Contains(u, strings.ReplaceAll(kw, " ", "-")) {
			return -r.Boost
		}
	}
	for _, kw := range r.MustContain {
		if strings.Contains(u, strings.ReplaceAll(kw, " ", "-")) {
			return r.Boost
		}
	}
	return 0
}

var keywordReplacer = strings.NewReplacer(
	"ı", "i", "ü", "u", "ö", "o", "ş", "s", "ç", "c", "ğ", "g",
	"İ", "i", "Ü", "u", "Ö", "o", "Ş", "s", "Ç", "c", "Ğ", "g",
)

// normalizeKeyword lowercases and strips Turkish diacritics so keyword
// matching works on both ASCII slugs and display text.
func normalizeKeyword(s string) string {
	return strings.ToLower(keywordReplacer.Replace(s))
}
