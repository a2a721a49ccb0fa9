package sites

// Defaults returns the built-in profiles for the supported beauty retailers.
// They are used when no profiles file is configured and serve as a template
// for site-specific overrides.
func Defaults() *Registry {
	profiles := map[string]*Profile{
		"trendyol": {
			Name:    "trendyol",
			BaseURL: "https://www.trendyol.com",
			CategoryPaths: map[string]string{
				"makyaj":       "/kozmetik-x-c89?webgenderid=1",
				"cilt_bakimi":  "/cilt-bakimi-x-c1070",
				"parfum":       "/parfum-ve-deodorant-x-c103705",
				"sac_bakimi":   "/sac-bakimi-x-c1354",
				"vucut_bakimi": "/agiz-ve-vucut-bakim-x-c104",
			},
			Selectors: map[string]SelectorChain{
				"product_link": {"div.p-card-wrppr a", "div.prdct-cntnr-wrppr a", "a[href*='-p-']"},
				"next_page":    {"a.pagination-next", "div.pgntn a[rel='next']"},
				"name":         {"h1.pr-new-br", "h1[data-drroot='title']", "h1.product-name", "h1"},
				"brand":        {"h1.pr-new-br a", "a.product-brand-name-with-link", "span.brand-name"},
				"price":        {"span.prc-dsc", "div.product-price-container span", "span.prc-slg"},
				"description":  {"div.info-wrapper", "div.detail-desc-list", "div.product-description"},
				"ingredients":  {"div.ingredients li", "div.detail-attr-container span"},
				"features":     {"ul.detail-attr-container li", "div.detail-attr-item"},
				"images":       {"div.gallery-modal-content img", "img.detail-section-img", "div.product-slide img"},
				"reviews":      {"div.comment-text p", "div.rnr-com-tx"},
				"category":     {"div.product-detail-breadcrumb a", "nav.breadcrumb a"},
			},
			RateLimitSeconds: 3,
		},
		"gratis": {
			Name:    "gratis",
			BaseURL: "https://www.gratis.com",
			CategoryPaths: map[string]string{
				"makyaj":       "/makyaj-c-501",
				"cilt_bakimi":  "/cilt-bakimi-c-502",
				"parfum":       "/parfum-deodorant-c-503",
				"sac_bakimi":   "/sac-bakimi-c-504",
				"vucut_bakimi": "/vucut-bakimi-c-505",
			},
			Selectors: map[string]SelectorChain{
				"product_link": {"div.product-item a.product-link", "div.ems-prd a", "a[href*='/p/']"},
				"next_page":    {"a.next", "li.pagination-next a"},
				"name":         {"h1.product-name", "div.product-info h1", "h1"},
				"brand":        {"a.product-brand", "div.brand-name a"},
				"price":        {"span.price-new", "div.product-price span.price", "span.price"},
				"description":  {"div.product-description", "div.tab-content div.description"},
				"ingredients":  {"div.ingredients-content li", "div#icerik li"},
				"features":     {"div.product-features li", "table.product-attrs tr"},
				"images":       {"div.product-gallery img", "img.product-image"},
				"reviews":      {"div.review-item p", "div.comment-content"},
				"category":     {"ul.breadcrumb li a", "nav.breadcrumbs a"},
			},
			RateLimitSeconds: 4,
		},
		"sephora_tr": {
			Name:    "sephora_tr",
			BaseURL: "https://www.sephora.com.tr",
			CategoryPaths: map[string]string{
				"makyaj":       "/makyaj-c301",
				"cilt_bakimi":  "/cilt-bakimi-c302",
				"parfum":       "/parfum-c101",
				"sac_bakimi":   "/sac-c303",
				"vucut_bakimi": "/banyo-vucut-c304",
			},
			Selectors: map[string]SelectorChain{
				"product_link": {"div.product-tile a.product-tile-link", "a.product-item-link", "a[href*='/p/']"},
				"next_page":    {"a.pagination-arrow-next", "a[rel='next']"},
				"name":         {"h1.product-name span", "h1.product-detail-name", "h1"},
				"brand":        {"span.product-brand", "a.brand-link"},
				"price":        {"span.price-sales", "div.product-price span", "span.price"},
				"description":  {"div.product-description-content", "div#tab1 div.content"},
				"ingredients":  {"div#tab3 div.content", "div.ingredients-block"},
				"features":     {"div.product-usage li", "div#tab2 li"},
				"usage":        {"div#tab2 div.content", "div.how-to-use"},
				"images":       {"div.primary-images img", "img.product-main-image"},
				"reviews":      {"div.bv-content-summary-body-text p", "div.review-text"},
				"category":     {"a.breadcrumb-element", "ol.breadcrumb li a"},
			},
			RateLimitSeconds: 5,
		},
	}
	return &Registry{profiles: profiles}
}
