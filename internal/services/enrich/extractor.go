package enrich

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/models"
)

// Extracted holds the structured fields pulled from one supplier page
type Extracted struct {
	CompanyName string
	Contact     models.ContactInfo
	PriceText   string
	PageExcerpt string
}

// Empty reports whether nothing useful was extracted. The company name alone
// does not count: it always resolves to something via the domain fallback. A
// page yielding an empty extraction produces a failed supplier result even
// when the fetch itself succeeded.
func (e Extracted) Empty() bool {
	return e.Contact.Empty() && e.PriceText == ""
}

// Extractor parses supplier pages into structured contact and pricing data.
// Extraction is conservative: fields are set only on a confident match.
type Extractor struct {
	logger        arbor.ILogger
	maxExcerptLen int
}

// NewExtractor creates a page extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		logger:        logger,
		maxExcerptLen: 4096,
	}
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// phoneRe matches international and national formats with at least 8 digits
	// worth of structure; shorter matches are mostly dates and order numbers.
	phoneRe = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?(?:\(\d{1,4}\)[\s.\-]?)?\d{2,4}[\s.\-]\d{2,4}[\s.\-]?\d{2,4}(?:[\s.\-]?\d{2,4})?`)

	// priceRe anchors on a currency symbol or ISO code next to a number
	priceRe = regexp.MustCompile(`(?:[$€£¥]\s?\d[\d,]*(?:\.\d{1,2})?|\d[\d,]*(?:\.\d{1,2})?\s?(?:USD|EUR|GBP|AUD|CAD)\b)`)

	// addressRe is a loose street-address heuristic: number, words, then a
	// street-type token.
	addressRe = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9.\s]{2,40}\b(?:street|st\.|avenue|ave\.?|road|rd\.?|boulevard|blvd\.?|lane|ln\.?|drive|dr\.?|court|ct\.?|way|place|pl\.?|suite|unit)\b[^\n<]{0,60}`)

	// hoursRe catches common opening-hours phrasings near day names
	hoursRe = regexp.MustCompile(`(?i)(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*\s*(?:-|–|to|through)\s*(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*[:\s]+[\d:apm\s.\-–]+`)

	// fakeEmailDomains filters placeholder addresses that appear in templates
	fakeEmailDomains = []string{"example.com", "domain.com", "email.com", "yourcompany.com", "sentry.io", "wixpress.com"}

	socialHosts = map[string]string{
		"facebook.com":  "facebook",
		"instagram.com": "instagram",
		"linkedin.com":  "linkedin",
		"twitter.com":   "twitter",
		"x.com":         "twitter",
		"youtube.com":   "youtube",
	}
)

// Extract parses the page body and pulls out company name, contact info,
// price, and a markdown excerpt of the main content.
func (e *Extractor) Extract(pageURL string, body []byte) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	// Scripts and styles pollute text-level regex matching
	doc.Find("script, style, noscript").Remove()

	result := &Extracted{
		CompanyName: e.companyName(doc, pageURL),
		PriceText:   e.price(doc),
	}
	result.Contact = models.ContactInfo{
		Emails:        e.emails(doc),
		Phones:        e.phones(doc),
		Addresses:     e.addresses(doc),
		BusinessHours: e.businessHours(doc),
		SocialLinks:   e.socialLinks(doc),
	}
	result.PageExcerpt = e.excerpt(pageURL, doc)

	e.logger.Debug().
		Str("url", pageURL).
		Str("company", result.CompanyName).
		Int("emails", len(result.Contact.Emails)).
		Int("phones", len(result.Contact.Phones)).
		Bool("price_found", result.PriceText != "").
		Msg("Page extraction completed")

	return result, nil
}

// companyName resolves the supplier name from structured metadata first, then
// the page title, then falls back to the domain.
func (e *Extractor) companyName(doc *goquery.Document, pageURL string) string {
	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		// Titles usually read "Product – Company"; take the last segment.
		for _, sep := range []string{" | ", " - ", " – ", " — ", " :: "} {
			if idx := strings.LastIndex(title, sep); idx >= 0 {
				if tail := strings.TrimSpace(title[idx+len(sep):]); tail != "" {
					return tail
				}
			}
		}
		if len(title) <= 60 {
			return title
		}
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" && len(h1) <= 60 {
		return h1
	}
	return Domain(pageURL)
}

// emails collects mailto links and text-level matches, filtered of
// placeholders and image filenames that look like addresses.
func (e *Extractor) emails(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var emails []string

	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			return
		}
		for _, fake := range fakeEmailDomains {
			if strings.HasSuffix(addr, "@"+fake) {
				return
			}
		}
		// Filenames like hero@2x.png match the email pattern
		for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"} {
			if strings.HasSuffix(addr, ext) {
				return
			}
		}
		seen[addr] = true
		emails = append(emails, addr)
	}

	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if idx := strings.Index(addr, "?"); idx >= 0 {
			addr = addr[:idx]
		}
		add(addr)
	})
	for _, match := range emailRe.FindAllString(doc.Text(), 20) {
		add(match)
	}

	if len(emails) > 5 {
		emails = emails[:5]
	}
	return emails
}

// phones collects tel links first (highest confidence), then text matches
func (e *Extractor) phones(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var phones []string

	add := func(num string) {
		num = strings.TrimSpace(num)
		digits := countDigits(num)
		if digits < 8 || digits > 15 {
			return
		}
		key := digitsOnly(num)
		if seen[key] {
			return
		}
		seen[key] = true
		// A number carrying a country code normalizes to E.164
		if strings.HasPrefix(num, "+") {
			num = "+" + key
		}
		phones = append(phones, num)
	}

	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(strings.TrimPrefix(href, "tel:"))
	})
	for _, match := range phoneRe.FindAllString(doc.Text(), 10) {
		add(match)
	}

	if len(phones) > 3 {
		phones = phones[:3]
	}
	return phones
}

// addresses pulls street-address candidates from address elements first, then
// heuristic text matches.
func (e *Extractor) addresses(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var addresses []string

	add := func(addr string) {
		addr = strings.Join(strings.Fields(addr), " ")
		if len(addr) < 10 || len(addr) > 200 {
			return
		}
		key := strings.ToLower(addr)
		if seen[key] {
			return
		}
		seen[key] = true
		addresses = append(addresses, addr)
	}

	doc.Find("address").Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})
	if len(addresses) == 0 {
		for _, match := range addressRe.FindAllString(doc.Text(), 5) {
			add(match)
		}
	}

	if len(addresses) > 3 {
		addresses = addresses[:3]
	}
	return addresses
}

// businessHours returns the first opening-hours phrase found
func (e *Extractor) businessHours(doc *goquery.Document) string {
	match := hoursRe.FindString(doc.Text())
	return strings.Join(strings.Fields(match), " ")
}

// socialLinks maps known social platforms to the first profile link found
func (e *Extractor) socialLinks(doc *goquery.Document) map[string]string {
	links := make(map[string]string)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		for host, platform := range socialHosts {
			if strings.Contains(lower, host) && links[platform] == "" {
				// Share widgets point at sharer endpoints, not profiles
				if strings.Contains(lower, "/share") || strings.Contains(lower, "sharer") || strings.Contains(lower, "/intent/") {
					continue
				}
				links[platform] = href
			}
		}
	})
	if len(links) == 0 {
		return nil
	}
	return links
}

// price returns the first currency-anchored price near product markup,
// preferring structured price metadata.
func (e *Extractor) price(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content"); ok && content != "" {
		currency, _ := doc.Find(`meta[property="product:price:currency"]`).Attr("content")
		return strings.TrimSpace(content + " " + currency)
	}
	if content, ok := doc.Find(`meta[itemprop="price"]`).Attr("content"); ok && content != "" {
		return strings.TrimSpace(content)
	}

	for _, sel := range []string{`[itemprop="price"]`, ".price", ".product-price", "#price"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			if match := priceRe.FindString(text); match != "" {
				return match
			}
		}
	}
	return priceRe.FindString(doc.Text())
}

// excerpt converts the page's main content to markdown for the report,
// truncated to a display-friendly length.
func (e *Extractor) excerpt(pageURL string, doc *goquery.Document) string {
	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}
	html, err := content.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return ""
	}

	converter := md.NewConverter(Domain(pageURL), true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		e.logger.Warn().Err(err).Str("url", pageURL).Msg("HTML to markdown conversion failed")
		return ""
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) > e.maxExcerptLen {
		cut := markdown[:e.maxExcerptLen]
		if idx := strings.LastIndex(cut, "\n"); idx > e.maxExcerptLen/2 {
			cut = cut[:idx]
		}
		markdown = cut
	}
	return markdown
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
