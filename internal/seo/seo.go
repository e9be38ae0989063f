// Package seo builds the schema.org payloads the page head embeds.
package seo

import "encoding/json"

// JSON marshals v to a compact JSON string. It returns an empty string on
// error so a bad payload degrades to no structured data.
func JSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// WebSite describes the listing pages.
func WebSite(name, url string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	return m
}

// LocalBusiness describes one store detail page.
func LocalBusiness(name, address, image, url string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "LocalBusiness",
		"name":     name,
	}
	if address != "" {
		m["address"] = address
	}
	if image != "" {
		m["image"] = image
	}
	if url != "" {
		m["url"] = url
	}
	return m
}

// Offer describes a discounted menu on a store page. Prices are in KRW.
func Offer(name string, price, discounted int64) map[string]any {
	return map[string]any{
		"@type":         "Offer",
		"name":          name,
		"price":         discounted,
		"priceCurrency": "KRW",
		"availability":  "https://schema.org/InStock",
		"priceSpecification": map[string]any{
			"@type": "UnitPriceSpecification",
			"price": price,
		},
	}
}

// WithOffers attaches menu offers to a LocalBusiness payload.
func WithOffers(business map[string]any, offers []map[string]any) map[string]any {
	if len(offers) > 0 {
		business["makesOffer"] = offers
	}
	return business
}
