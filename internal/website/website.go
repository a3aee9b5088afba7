// Package website checks a company's claimed capabilities against the
// company's public website. Discrepancies become gaps with partnering
// suggestions; confirmations raise the validation score. A missing or
// unreachable website is a degraded result, never an error.
package website

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
	"github.com/nofone/solmatch/internal/solicitation"
)

// GapType classifies a discrepancy between the company profile and the
// website.
type GapType string

const (
	GapCapabilityMissing       GapType = "capability_missing"
	GapCertificationUnverified GapType = "certification_unverified"
	GapTechnicalExpertise      GapType = "technical_expertise_gap"
	GapMarketFocusDifferent    GapType = "market_focus_different"
)

// Gap is one discrepancy, graded by severity in [0, 1].
type Gap struct {
	Type         GapType `json:"gap_type"`
	Description  string  `json:"description"`
	ClaimedValue string  `json:"claimed_value"`
	WebsiteValue string  `json:"website_value"`
	Severity     float64 `json:"severity"`
}

// Opportunity suggests a teaming arrangement covering a critical gap.
type Opportunity struct {
	Gap        string `json:"gap"`
	Type       string `json:"opportunity_type"`
	Suggestion string `json:"suggestion"`
	Priority   string `json:"priority"`
}

// Validation is the per-company outcome. Score is in [0, 1]; a company with
// no reachable website still gets a Validation, graded down.
type Validation struct {
	CompanyID     string        `json:"company_id"`
	URL           string        `json:"website_url"`
	Accessible    bool          `json:"website_accessible"`
	Score         float64       `json:"validation_score"`
	Gaps          []Gap         `json:"gaps_found"`
	Confirmed     []string      `json:"confirmed_capabilities"`
	Capabilities  []string      `json:"website_capabilities"`
	Opportunities []Opportunity `json:"partnering_opportunities"`
	Summary       string        `json:"summary"`
}

// Scores assigned when no page content is available to validate against.
const (
	noWebsiteScore    = 0.3
	inaccessibleScore = 0.4

	criticalSeverity = 0.7

	maxMainText   = 5000
	maxHeadings   = 20
	maxSectionLen = 1000
)

const defaultTimeout = 15 * time.Second

// capabilityPatterns maps a display label to the phrases that signal it on a
// page. First phrase hit claims the label.
var capabilityPatterns = map[string][]string{
	"Software Development":    {"software development", "custom software", "application development"},
	"Cloud Computing":         {"cloud computing", "cloud services", "cloud migration", "aws", "azure", "gcp"},
	"Cybersecurity":           {"cybersecurity", "cyber security", "information security", "security operations"},
	"Data Analytics":          {"data analytics", "data science", "business intelligence", "big data"},
	"Artificial Intelligence": {"artificial intelligence", "machine learning", "deep learning"},
	"DevOps":                  {"devops", "ci/cd", "continuous integration", "continuous delivery"},
	"Mobile Development":      {"mobile development", "mobile app", "ios development", "android development"},
	"Web Development":         {"web development", "web design", "web applications"},
	"Consulting":              {"consulting", "advisory services", "strategic consulting"},
	"Systems Integration":     {"systems integration", "system integration", "enterprise integration"},
	"IT Infrastructure":       {"it infrastructure", "network infrastructure", "infrastructure management"},
	"Research":                {"research", "r&d", "research and development"},
	"Engineering":             {"engineering", "technical services", "engineering services"},
}

// Validator scrapes and grades company websites.
type Validator struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func NewValidator(userAgent string, timeout time.Duration, log *zap.Logger) *Validator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		logger:     log,
	}
}

// pageContent is what the scraper pulls out of one page.
type pageContent struct {
	title           string
	metaDescription string
	mainText        string
	headings        []string
	servicesSection string
	aboutSection    string
	metaKeywords    []string
}

// searchable joins every extracted fragment, lowercased, for phrase lookups.
func (p *pageContent) searchable() string {
	parts := []string{p.title, p.metaDescription, p.mainText, p.servicesSection, p.aboutSection}
	parts = append(parts, p.headings...)
	parts = append(parts, p.metaKeywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Validate grades one company against its website. It always returns a
// Validation; scraping failures degrade the score instead of erroring.
func (v *Validator) Validate(ctx context.Context, req *solicitation.Request, profile *company.Profile) *Validation {
	log := v.logger.With(zap.String("company_id", profile.ID))

	rawURL := strings.TrimSpace(profile.Website)
	if rawURL == "" {
		log.Debug("company has no website; skipping validation scrape")
		return noWebsiteResult(profile)
	}

	pageURL := normalizeURL(rawURL)
	page, err := v.scrape(ctx, pageURL)
	if err != nil {
		log.Warn("website unreachable; grading down", zap.String("url", pageURL), zap.Error(err))
		return inaccessibleResult(profile, pageURL)
	}

	caps := extractCapabilities(page)
	gaps := identifyGaps(req, profile, caps, page)
	confirmed := confirmedCapabilities(profile, caps)
	opportunities := partneringOpportunities(gaps)
	score := validationScore(profile, confirmed, gaps)

	result := &Validation{
		CompanyID:     profile.ID,
		URL:           pageURL,
		Accessible:    true,
		Score:         score,
		Gaps:          gaps,
		Confirmed:     confirmed,
		Capabilities:  caps,
		Opportunities: opportunities,
	}
	result.Summary = summarize(result)

	log.Debug("website validation completed",
		zap.Float64("score", score),
		zap.Int("gaps", len(gaps)),
		zap.Int("confirmed", len(confirmed)),
	)

	return result
}

func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

func (v *Validator) scrape(ctx context.Context, pageURL string) (*pageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return extractContent(doc), nil
}

func extractContent(doc *goquery.Document) *pageContent {
	page := &pageContent{
		title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.metaDescription = strings.TrimSpace(desc)
	} else if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		page.metaDescription = strings.TrimSpace(desc)
	}

	// Boilerplate regions carry navigation text, not capability evidence.
	doc.Find("script, style, nav, footer, header").Remove()
	page.mainText = capLen(collapseSpace(doc.Find("body").Text()), maxMainText)

	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h := collapseSpace(s.Text())
		if len(h) > 2 {
			page.headings = append(page.headings, h)
		}
		return len(page.headings) < maxHeadings
	})

	page.servicesSection = sectionNear(doc, []string{"services", "capabilities", "solutions", "offerings", "what we do"})
	page.aboutSection = sectionNear(doc, []string{"about us", "about", "who we are", "our company", "our story"})

	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				page.metaKeywords = append(page.metaKeywords, k)
			}
			if len(page.metaKeywords) == maxHeadings {
				break
			}
		}
	}

	return page
}

// sectionNear finds the first heading containing one of the markers and
// returns the text of its enclosing element.
func sectionNear(doc *goquery.Document, markers []string) string {
	var out string
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		heading := strings.ToLower(s.Text())
		for _, marker := range markers {
			if strings.Contains(heading, marker) {
				out = capLen(collapseSpace(s.Parent().Text()), maxSectionLen)
				return false
			}
		}
		return true
	})
	return out
}

func extractCapabilities(page *pageContent) []string {
	text := page.searchable()

	var caps []string
	for label, phrases := range capabilityPatterns {
		for _, phrase := range phrases {
			if strings.Contains(text, phrase) {
				caps = append(caps, label)
				break
			}
		}
	}
	sort.Strings(caps)
	return caps
}

func identifyGaps(req *solicitation.Request, profile *company.Profile, websiteCaps []string, page *pageContent) []Gap {
	var gaps []Gap

	text := page.searchable()

	for _, claimed := range profile.Capabilities {
		if capabilityOnWebsite(claimed, websiteCaps, text) {
			continue
		}
		severity := 0.5
		if matchesAny(claimed, req.Keywords) {
			severity = 0.8
		}
		gaps = append(gaps, Gap{
			Type:         GapCapabilityMissing,
			Description:  fmt.Sprintf("claimed capability %q not found on website", claimed),
			ClaimedValue: claimed,
			WebsiteValue: "not mentioned",
			Severity:     severity,
		})
	}

	// A solicitation keyword absent from both the profile and the website is
	// the most severe gap there is.
	for _, required := range req.Keywords {
		if matchesAny(required, profile.Capabilities) || matchesAny(required, websiteCaps) {
			continue
		}
		gaps = append(gaps, Gap{
			Type:         GapTechnicalExpertise,
			Description:  fmt.Sprintf("required capability %q missing from both profile and website", required),
			ClaimedValue: "not claimed",
			WebsiteValue: "not found",
			Severity:     1.0,
		})
	}

	for _, cert := range profile.Certifications {
		if strings.Contains(text, strings.ToLower(cert)) {
			continue
		}
		gaps = append(gaps, Gap{
			Type:         GapCertificationUnverified,
			Description:  fmt.Sprintf("certification %q claimed but not verified on website", cert),
			ClaimedValue: cert,
			WebsiteValue: "not verified",
			Severity:     0.6,
		})
	}

	return gaps
}

// capabilityOnWebsite accepts a substring hit in either direction against
// the extracted capability labels, then falls back to the page text.
func capabilityOnWebsite(claimed string, websiteCaps []string, text string) bool {
	if matchesAny(claimed, websiteCaps) {
		return true
	}
	lower := strings.ToLower(claimed)
	if strings.Contains(text, lower) {
		return true
	}
	for _, word := range strings.Fields(lower) {
		if len(word) > 4 && strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func matchesAny(value string, candidates []string) bool {
	lower := strings.ToLower(value)
	for _, c := range candidates {
		cl := strings.ToLower(c)
		if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
			return true
		}
	}
	return false
}

func confirmedCapabilities(profile *company.Profile, websiteCaps []string) []string {
	var confirmed []string
	for _, claimed := range profile.Capabilities {
		if matchesAny(claimed, websiteCaps) {
			confirmed = append(confirmed, claimed)
		}
	}
	return confirmed
}

func partneringOpportunities(gaps []Gap) []Opportunity {
	var out []Opportunity
	for _, gap := range gaps {
		if gap.Severity < criticalSeverity {
			continue
		}
		switch gap.Type {
		case GapCapabilityMissing:
			priority := "Medium"
			if gap.Severity >= 0.8 {
				priority = "High"
			}
			out = append(out, Opportunity{
				Gap:        gap.ClaimedValue,
				Type:       "Capability Partnership",
				Suggestion: fmt.Sprintf("partner with a company that has proven %s delivery to cover this gap", gap.ClaimedValue),
				Priority:   priority,
			})
		case GapTechnicalExpertise:
			out = append(out, Opportunity{
				Gap:        gap.ClaimedValue,
				Type:       "Technical Partnership",
				Suggestion: fmt.Sprintf("form a teaming arrangement with a firm specialized in %s", gap.ClaimedValue),
				Priority:   "Critical",
			})
		}
	}
	return out
}

// validationScore weighs the confirmation rate at 0.7 and the inverse
// average gap severity at 0.3, clamped to [0, 1]. No claims scores a
// neutral 0.5.
func validationScore(profile *company.Profile, confirmed []string, gaps []Gap) float64 {
	if len(profile.Capabilities) == 0 {
		return 0.5
	}

	confirmationRate := float64(len(confirmed)) / float64(len(profile.Capabilities))

	var gapPenalty float64
	if len(gaps) > 0 {
		var total float64
		for _, gap := range gaps {
			total += gap.Severity
		}
		gapPenalty = total / float64(len(gaps)) * 0.3
	}

	score := confirmationRate*0.7 + (1.0-gapPenalty)*0.3
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func summarize(v *Validation) string {
	var b strings.Builder

	switch {
	case v.Score >= 0.8:
		fmt.Fprintf(&b, "strong validation (%.0f%%)", v.Score*100)
	case v.Score >= 0.6:
		fmt.Fprintf(&b, "moderate validation (%.0f%%)", v.Score*100)
	default:
		fmt.Fprintf(&b, "weak validation (%.0f%%)", v.Score*100)
	}

	if len(v.Confirmed) > 0 {
		shown := v.Confirmed
		if len(shown) > 3 {
			shown = shown[:3]
		}
		fmt.Fprintf(&b, "; confirmed on website (%d): %s", len(v.Confirmed), strings.Join(shown, ", "))
	}

	critical := 0
	for _, gap := range v.Gaps {
		if gap.Severity >= criticalSeverity {
			critical++
		}
	}
	if critical > 0 {
		fmt.Fprintf(&b, "; %d critical gap(s) found", critical)
	}
	if len(v.Opportunities) > 0 {
		fmt.Fprintf(&b, "; %d partnering opportunity(ies) identified", len(v.Opportunities))
	}

	return b.String()
}

func noWebsiteResult(profile *company.Profile) *Validation {
	return &Validation{
		CompanyID:  profile.ID,
		Accessible: false,
		Score:      noWebsiteScore,
		Gaps: []Gap{{
			Type:         GapMarketFocusDifferent,
			Description:  "no website available for validation",
			ClaimedValue: "website expected",
			WebsiteValue: "none",
			Severity:     0.7,
		}},
		Summary: fmt.Sprintf("no website; cannot validate %s claims", profile.Name),
	}
}

func inaccessibleResult(profile *company.Profile, pageURL string) *Validation {
	return &Validation{
		CompanyID:  profile.ID,
		URL:        pageURL,
		Accessible: false,
		Score:      inaccessibleScore,
		Gaps: []Gap{{
			Type:         GapMarketFocusDifferent,
			Description:  fmt.Sprintf("website %s is not accessible", pageURL),
			ClaimedValue: "accessible website",
			WebsiteValue: "inaccessible",
			Severity:     0.6,
		}},
		Summary: fmt.Sprintf("website inaccessible; cannot validate %s against %s", profile.Name, pageURL),
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func capLen(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
