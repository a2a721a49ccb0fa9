package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SelectorChainForms(t *testing.T) {
	yamlData := []byte(`
examplestore:
  base_url: https://shop.example.com
  category_paths:
    makyaj: /makeup
  selectors:
    name: h1.title
    price:
      - span.sale-price
      - span.price
  rate_limit_seconds: 2
`)

	reg, err := Parse(yamlData)
	require.NoError(t, err)

	p, err := reg.Get("examplestore")
	require.NoError(t, err)

	assert.Equal(t, "examplestore", p.Name, "name should default to the map key")
	assert.Equal(t, SelectorChain{"h1.title"}, p.Chain("name"))
	assert.Equal(t, SelectorChain{"span.sale-price", "span.price"}, p.Chain("price"))
	assert.Equal(t, "https://shop.example.com/makeup", p.CategoryURL("makyaj"))
	assert.Equal(t, "https://shop.example.com", p.CategoryURL("unknown"))
}

func TestParse_InvalidProfiles(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing base_url",
			yaml: "s1:\n  selectors:\n    name: h1\n",
		},
		{
			name: "no selectors",
			yaml: "s1:\n  base_url: https://example.com\n",
		},
		{
			name: "negative rate limit",
			yaml: "s1:\n  base_url: https://example.com\n  selectors:\n    name: h1\n  rate_limit_seconds: -1\n",
		},
		{
			name: "chain is a mapping",
			yaml: "s1:\n  base_url: https://example.com\n  selectors:\n    name:\n      css: h1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegistry_UnknownSite(t *testing.T) {
	reg := Defaults()
	_, err := reg.Get("nosuchsite")
	assert.Error(t, err)
}

func TestDefaults_AllProfilesValid(t *testing.T) {
	reg := Defaults()
	require.NotEmpty(t, reg.Names())

	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		require.NoError(t, err)
		assert.NoError(t, p.Validate())
		assert.NotEmpty(t, p.Chain("product_link"), "%s must configure product_link", name)
		assert.NotEmpty(t, p.Chain("name"), "%s must configure name", name)
		assert.NotEmpty(t, p.Chain("price"), "%s must configure price", name)
	}
}

func TestProfile_FieldNamesDeterministic(t *testing.T) {
	p := &Profile{
		Name:    "s",
		BaseURL: "https://example.com",
		Selectors: map[string]SelectorChain{
			"price": {"span"},
			"name":  {"h1"},
			"brand": {"a"},
		},
	}
	assert.Equal(t, []string{"brand", "name", "price"}, p.FieldNames())
}
