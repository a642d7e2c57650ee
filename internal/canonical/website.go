package canonical

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// placeholders are website values that mean "unknown".
var placeholders = map[string]bool{
	"":        true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"-":       true,
	"null":    true,
	"unknown": true,
	"tbd":     true,
}

// IsPlaceholder reports whether v carries no real value.
func IsPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// NormalizeWebsite canonicalizes a firm website: https:// is added when no
// scheme is present, the host is lowercased and loses a leading "www.", and
// the path loses its trailing slash. The query string is kept. Placeholder
// values and values with no host left normalize to "".
func NormalizeWebsite(raw string) string {
	if IsPlaceholder(raw) {
		return ""
	}
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return literalWebsite(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if u.Hostname() == "" {
		return ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}

// WebsiteKey is the scheme-less form of a normalized website, so that
// "https://Example.com/", "example.com" and "www.example.com" all map to
// "example.com".
func WebsiteKey(raw string) string {
	n := NormalizeWebsite(raw)
	if i := strings.Index(n, "://"); i >= 0 {
		n = n[i+3:]
	}
	return n
}

// Domain returns the lowercase host of a website without "www.", or "".
func Domain(raw string) string {
	key := WebsiteKey(raw)
	if i := strings.IndexAny(key, "/?"); i >= 0 {
		key = key[:i]
	}
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		key = key[:i]
	}
	return key
}

// DedupeKey is the store's uniqueness key for a firm: the website key, or
// "name:" plus the folded firm name when the website is absent.
func DedupeKey(website, firmName string) string {
	if k := WebsiteKey(website); k != "" {
		return k
	}
	if name := FoldName(firmName); name != "" {
		return "name:" + name
	}
	return ""
}

// FoldName case-folds s, strips diacritics and collapses whitespace.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(out)), " ")
}

// literalWebsite mirrors NormalizeWebsite with plain string operations for
// values url.Parse rejects.
func literalWebsite(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	scheme := "https://"
	if strings.HasPrefix(d, "http://") {
		scheme = "http://"
	}
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")
	if d == "" || strings.HasPrefix(d, "/") || strings.HasPrefix(d, ":") {
		return ""
	}
	return scheme + d
}
