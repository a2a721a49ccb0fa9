package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/denizaktas/beautyharvest/internal/models"
)

// Pseudo-selectors recorded when a field came from structured data instead
// of a configured CSS chain.
const (
	sourceJSONLD    = "jsonld"
	sourceOpenGraph = "og"
)

// structuredFallback fills still-missing required fields from JSON-LD
// product blocks and OpenGraph meta tags. Configured selectors always take
// precedence; the fallback never overwrites an extracted value.
func (e *Engine) structuredFallback(page Pager, fm *models.RawFieldMap) error {
	html, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to read page markup: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse page markup: %w", err)
	}

	applyJSONLD(doc, fm)
	applyOpenGraph(doc, fm)
	return nil
}

func applyJSONLD(doc *goquery.Document, fm *models.RawFieldMap) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		product, ok := findProductNode([]byte(sel.Text()))
		if !ok {
			return true
		}

		setIfMissing(fm, models.FieldName, stringValue(product["name"]), sourceJSONLD+":name")
		setIfMissing(fm, models.FieldBrand, brandName(product["brand"]), sourceJSONLD+":brand")
		setIfMissing(fm, models.FieldDescription, stringValue(product["description"]), sourceJSONLD+":description")
		setIfMissing(fm, models.FieldPrice, offerPrice(product["offers"]), sourceJSONLD+":offers.price")

		if img := stringValue(product["image"]); img != "" && len(fm.Lists[models.FieldImages]) == 0 {
			fm.Lists[models.FieldImages] = []string{img}
			fm.SourceSelector[models.FieldImages] = sourceJSONLD + ":image"
		}
		return false
	})
}

// findProductNode digs a Product object out of a JSON-LD payload, which may
// be a single object, a top-level array, or an @graph wrapper.
func findProductNode(data []byte) (map[string]interface{}, bool) {
	var node interface{}
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, false
	}
	return searchProduct(node)
}

func searchProduct(node interface{}) (map[string]interface{}, bool) {
	switch v := node.(type) {
	case map[string]interface{}:
		if t := stringValue(v["@type"]); strings.EqualFold(t, "Product") {
			return v, true
		}
		if graph, ok := v["@graph"]; ok {
			return searchProduct(graph)
		}
	case []interface{}:
		for _, item := range v {
			if p, ok := searchProduct(item); ok {
				return p, true
			}
		}
	}
	return nil, false
}

func offerPrice(offers interface{}) string {
	switch v := offers.(type) {
	case map[string]interface{}:
		if p := stringValue(v["price"]); p != "" {
			return p
		}
		return stringValue(v["lowPrice"])
	case []interface{}:
		for _, item := range v {
			if p := offerPrice(item); p != "" {
				return p
			}
		}
	}
	return ""
}

func brandName(brand interface{}) string {
	switch v := brand.(type) {
	case string:
		return v
	case map[string]interface{}:
		return stringValue(v["name"])
	}
	return ""
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	case []interface{}:
		if len(t) > 0 {
			return stringValue(t[0])
		}
	}
	return ""
}

var ogFields = []struct {
	property string
	field    string
}{
	{"og:title", models.FieldName},
	{"product:price:amount", models.FieldPrice},
	{"og:description", models.FieldDescription},
	{"product:brand", models.FieldBrand},
}

func applyOpenGraph(doc *goquery.Document, fm *models.RawFieldMap) {
	for _, og := range ogFields {
		meta := doc.Find(fmt.Sprintf(`meta[property=%q]`, og.property)).First()
		content, ok := meta.Attr("content")
		if !ok {
			continue
		}
		setIfMissing(fm, og.field, strings.TrimSpace(content), sourceOpenGraph+":"+og.property)
	}

	if len(fm.Lists[models.FieldImages]) == 0 {
		if img, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && img != "" {
			fm.Lists[models.FieldImages] = []string{img}
			fm.SourceSelector[models.FieldImages] = sourceOpenGraph + ":og:image"
		}
	}
}

func setIfMissing(fm *models.RawFieldMap, field, value, source string) {
	if value == "" || fm.Has(field) {
		return
	}
	fm.Fields[field] = value
	fm.SourceSelector[field] = source
}
