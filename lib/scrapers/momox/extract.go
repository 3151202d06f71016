package momox

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"momox-agent/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Heuristics carries every site-shape-dependent constant used to read
// a momox response. all of it is data so that the next site redesign
// is a config change, not a rewrite.
type Heuristics struct {
	// price must be strictly inside (0, PriceCeiling) to be trusted
	PriceCeiling decimal.Decimal `json:"price_ceiling"`
	// phrases that mean "we will not buy this", anywhere in the page
	RefusalPhrases []string `json:"refusal_phrases"`
	// prefixes of the natural-language price announcement
	AnnouncePhrases []string `json:"announce_phrases"`
	// markers after which page content is footer/navigation boilerplate
	FooterMarkers []string `json:"footer_markers"`
	// amounts the generic scan must never trust, observed to appear
	// on unrelated parts of the page. heuristic debt, see DESIGN.md.
	FalsePositives []string `json:"false_positives"`
	// json field names the api has used for the purchase price over time
	PriceAliases []string `json:"price_aliases"`
	// json field names the api has used for the item title over time
	TitleAliases []string `json:"title_aliases"`
	// titles that are just branding, never an item title
	BrandTitles []string `json:"brand_titles"`
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		PriceCeiling: decimal.NewFromInt(500),
		RefusalPhrases: []string{
			"leider nicht ankaufen",
			"können wir nicht ankaufen",
			"kein ankaufspreis",
		},
		AnnouncePhrases: []string{
			"du erhältst",
			"sie erhalten",
		},
		FooterMarkers: []string{
			"<footer",
			"id=\"footer\"",
			"class=\"footer",
		},
		// the "sell 10 € worth of books" banner amount
		FalsePositives: []string{"10"},
		PriceAliases:   []string{"price", "purchasePrice", "purchase_price", "offerPrice"},
		TitleAliases:   []string{"title", "name", "productTitle"},
		BrandTitles:    []string{"momox", "momox.de", "bücher verkaufen"},
	}
}

// how far after an announce phrase the amount may appear
const announceWindow = 120

// Interpret turns one tier's raw response into a signal. it never
// returns an error, a body it cannot make sense of is an ordinary
// inconclusive result.
func (h Heuristics) Interpret(res Response, isbn string) Signal {
	// the offer api answers 404 for items it will not buy, that is
	// the api's word on the matter, not a transport failure
	if res.Tier.Shape() == ShapeJson && res.StatusCode == http.StatusNotFound {
		return notBuyable(isbn)
	}
	if res.StatusCode != http.StatusOK {
		return inconclusive(isbn)
	}
	if res.Tier.Shape() == ShapeJson {
		return h.extractJson(res.Body, isbn)
	}
	return h.extractHtml(res.Body, isbn)
}

func (h Heuristics) extractJson(body []byte, isbn string) Signal {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return inconclusive(isbn)
	}

	title := h.jsonTitle(data, isbn)

	raw, ok := probeAliases(data, h.PriceAliases)
	if !ok {
		return inconclusive(title)
	}
	price, ok := parsePrice(raw)
	if !ok || !h.inBounds(price) {
		return inconclusive(title)
	}
	return buyable(price, title)
}

func (h Heuristics) jsonTitle(data map[string]any, isbn string) string {
	raw, ok := probeAliases(data, h.TitleAliases)
	if !ok {
		return isbn
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return isbn
	}
	return htmlutil.CleanText(s)
}

// probeAliases looks an alias list up at the top level of a decoded
// json object, then one nesting level deep. the api has wrapped the
// offer in an envelope object before and may do so again. nested keys
// are walked in sorted order so two envelopes that both carry an
// alias resolve the same way on every run.
func probeAliases(data map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := data[alias]; ok && v != nil {
			return v, true
		}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		nested, ok := data[k].(map[string]any)
		if !ok {
			continue
		}
		for _, alias := range aliases {
			if v, ok := nested[alias]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// the leading boundary keeps the scan off the tail of a larger
// number, "1.234,56 €" must not read as "234,56 €"
var amountPattern = regexp.MustCompile(`(?:^|[^\d.,])(\d{1,3}(?:[.,]\d{1,2})?)\s*€`)

func (h Heuristics) extractHtml(body []byte, isbn string) Signal {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// not parseable as html at all, fall back to scanning the
		// raw bytes for the refusal phrases, nothing else is safe
		if h.containsRefusal(string(body)) {
			return notBuyable(isbn)
		}
		return inconclusive(isbn)
	}

	title := h.htmlTitle(doc, isbn)
	pageText := htmlutil.CleanText(doc.Text())

	// an explicit refusal wins over any price-looking substring
	if h.containsRefusal(pageText) {
		return notBuyable(title)
	}

	// the wording momox uses when it announces what it pays
	if price, ok := h.announcedPrice(pageText); ok {
		return buyable(price, title)
	}

	// last resort: any amount, but only above the footer. the footer
	// carries an unrelated shop price that must never win.
	main := h.mainRegion(body)
	mainDoc, err := goquery.NewDocumentFromReader(strings.NewReader(main))
	if err != nil {
		return inconclusive(title)
	}
	if price, ok := h.genericPrice(htmlutil.CleanText(mainDoc.Text())); ok {
		return buyable(price, title)
	}
	return inconclusive(title)
}

func (h Heuristics) containsRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range h.RefusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (h Heuristics) announcedPrice(text string) (decimal.Decimal, bool) {
	// indexing and slicing must happen in the same string, case
	// folding can change byte offsets
	lower := strings.ToLower(text)
	for _, phrase := range h.AnnouncePhrases {
		at := strings.Index(lower, strings.ToLower(phrase))
		if at < 0 {
			continue
		}
		window := lower[at:]
		if len(window) > announceWindow {
			window = window[:announceWindow]
		}
		m := amountPattern.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		price, ok := parsePrice(m[1])
		if ok && h.inBounds(price) {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

func (h Heuristics) genericPrice(text string) (decimal.Decimal, bool) {
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		price, ok := parsePrice(m[1])
		if !ok || !h.inBounds(price) {
			continue
		}
		if h.isFalsePositive(price) {
			continue
		}
		return price, true
	}
	return decimal.Decimal{}, false
}

func (h Heuristics) isFalsePositive(price decimal.Decimal) bool {
	for _, raw := range h.FalsePositives {
		known, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if price.Equal(known) {
			return true
		}
	}
	return false
}

// mainRegion cuts the document off at the first footer marker so the
// generic amount scan never sees boilerplate.
func (h Heuristics) mainRegion(body []byte) string {
	// the cut offset is found in the lowercased page, so the slice
	// must come from the lowercased page too. only amounts are read
	// out of this region, case does not matter downstream.
	page := strings.ToLower(string(body))
	cut := len(page)
	for _, marker := range h.FooterMarkers {
		if at := strings.Index(page, strings.ToLower(marker)); at >= 0 && at < cut {
			cut = at
		}
	}
	return page[:cut]
}

func (h Heuristics) htmlTitle(doc *goquery.Document, isbn string) string {
	if t, ok := h.linkedDataTitle(doc); ok {
		return t
	}
	if t := htmlutil.CleanText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := htmlutil.CleanText(doc.Find("title").First().Text()); t != "" && !h.isBrandTitle(t) {
		return t
	}
	return isbn
}

type linkedData struct {
	Name string `json:"name"`
}

func (h Heuristics) linkedDataTitle(doc *goquery.Document) (string, bool) {
	title := ""
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := []byte(htmlutil.GetText(s.Get(0)))

		var single linkedData
		if err := json.Unmarshal(raw, &single); err == nil && single.Name != "" {
			title = single.Name
			return false
		}
		var many []linkedData
		if err := json.Unmarshal(raw, &many); err == nil {
			for _, ld := range many {
				if ld.Name != "" {
					title = ld.Name
					return false
				}
			}
		}
		return true
	})
	if title == "" {
		return "", false
	}
	return htmlutil.CleanText(title), true
}

func (h Heuristics) isBrandTitle(title string) bool {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, brand := range h.BrandTitles {
		if normalized == brand {
			return true
		}
	}
	return false
}

func (h Heuristics) inBounds(price decimal.Decimal) bool {
	return price.IsPositive() && price.LessThan(h.PriceCeiling)
}

// parsePrice accepts the formats the site has used so far: a json
// number, "1,64", "1.64" or "12". anything with an ambiguous sign or
// more than one separator cancels the match instead of guessing.
func parsePrice(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimSuffix(s, "€")
		s = strings.TrimSpace(s)
		if s == "" || strings.ContainsAny(s, "+-") {
			return decimal.Decimal{}, false
		}
		if strings.Count(s, ",")+strings.Count(s, ".") > 1 {
			return decimal.Decimal{}, false
		}
		s = strings.ReplaceAll(s, ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
	return decimal.Decimal{}, false
}
