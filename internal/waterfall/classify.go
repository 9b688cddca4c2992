package waterfall

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/catalog-enricher/internal/model"
)

const maxEvidence = 500

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s)\]"']+`)
	domainPattern = regexp.MustCompile(`(?i)\b((?:[a-z0-9-]+\.)+[a-z]{2,})\b`)
	unverifiedTag = []string{"non verificato", "unverified", "not verified", "⚠"}
	pageRef       = regexp.MustCompile(`\bpag(?:ina|e)?\.?\s*\d`)
	webWord       = regexp.MustCompile(`\bweb`)
)

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// classify maps a free-form audit hint returned by the enrichment call to a
// source type, label, URL and evidence.
func (r *Resolver) classify(hint string, ext External) (model.CandidateValue, []model.Warning) {
	h := strings.TrimSpace(hint)
	l := strings.ToLower(h)

	switch {
	case webWord.MatchString(l) || containsAny(l, "http", "www."):
		return webCandidate(h, ext), nil

	case containsAny(l, "pdf", "catalogo") || pageRef.MatchString(l):
		if ext.PDFLabel == "" {
			return model.CandidateValue{Source: model.SourceAI, Label: "AI"},
				[]model.Warning{model.Warn("source %q claims a PDF but no catalog page was supplied", h)}
		}
		return model.CandidateValue{
			Source:   model.SourcePDF,
			Label:    "PDF: " + ext.PDFLabel,
			Evidence: truncate(ext.PDFEvidence, maxEvidence),
		}, nil

	case containsAny(l, "foto", "immagine", "image", "visual", "photo"):
		if !ext.HadImage {
			return model.CandidateValue{Source: model.SourceAI, Label: "AI"},
				[]model.Warning{model.Warn("source %q claims an image but none was supplied", h)}
		}
		return model.CandidateValue{Source: model.SourceImage, Label: h}, nil

	case containsAny(l, "produttore", "manufacturer", "fornitore", "supplier"):
		return model.CandidateValue{Source: model.SourceManufacturer, Label: h, Evidence: "manufacturer file"}, nil

	case domainPattern.MatchString(l):
		return webCandidate(h, ext), nil

	default:
		label := h
		if label == "" {
			label = "AI"
		}
		return model.CandidateValue{Source: model.SourceAI, Label: label}, nil
	}
}

func webCandidate(hint string, ext External) model.CandidateValue {
	domain, link := webOrigin(hint, ext.GroundingURLs)
	label := hint
	if domain != "" && !strings.Contains(strings.ToLower(hint), domain) {
		label = "Web: " + domain
	}
	return model.CandidateValue{Source: model.SourceWeb, Label: label, URL: link}
}

// webOrigin extracts the domain a web hint refers to and the best URL for
// it, preferring an explicit URL and then a matching grounding URL.
func webOrigin(hint string, grounding []string) (domain, link string) {
	if u := urlPattern.FindString(hint); u != "" {
		return hostOf(u), u
	}
	rest := hint
	if i := strings.Index(strings.ToLower(rest), "web:"); i >= 0 {
		rest = rest[i+len("web:"):]
	}
	if m := domainPattern.FindStringSubmatch(rest); m != nil {
		domain = strings.TrimPrefix(strings.ToLower(m[1]), "www.")
	}
	for _, g := range grounding {
		if domain != "" && domainMatches(hostOf(g), domain) {
			return domain, g
		}
	}
	if domain == "" && len(grounding) == 1 {
		return hostOf(grounding[0]), grounding[0]
	}
	return domain, ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// domainMatches reports whether host is domain or one of its subdomains.
func domainMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func (r *Resolver) trustedWeb(c model.CandidateValue) bool {
	if containsAny(strings.ToLower(c.Label), unverifiedTag...) {
		return false
	}
	var hosts []string
	if c.URL != "" {
		hosts = append(hosts, hostOf(c.URL))
	}
	if m := domainPattern.FindStringSubmatch(c.Label); m != nil {
		hosts = append(hosts, strings.TrimPrefix(strings.ToLower(m[1]), "www."))
	}
	for _, h := range hosts {
		for _, t := range r.trusted {
			if h != "" && domainMatches(h, t) {
				return true
			}
		}
	}
	return false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
