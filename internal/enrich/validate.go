package enrich

import (
	"net/url"
	"strings"

	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
)

const (
	linkedInHost    = "www.linkedin.com"
	linkedInProfile = "/in/"
)

// Validator applies post-generation plausibility checks to contact fields.
// Basic strictness only rejects values already used by another contact.
type Validator struct {
	strictness prompt.Strictness
}

// NewValidator creates a Validator.
func NewValidator(s prompt.Strictness) Validator {
	return Validator{strictness: s}
}

// Fields returns proposed with every rejected field blanked. name is the
// person the fields should belong to, domain the firm's website domain and
// others the firm's remaining contacts.
func (v Validator) Fields(proposed model.Contact, name, domain string, others []model.Contact) model.Contact {
	out := proposed.Trim()
	emails, profiles := inUse(others)

	if out.Email != "" {
		switch {
		case emails[strings.ToLower(out.Email)]:
			out.Email = ""
		case v.strictness == prompt.Strict && !EmailMatchesDomain(out.Email, domain):
			out.Email = ""
		}
	}
	if out.LinkedIn != "" {
		switch {
		case profiles[strings.ToLower(out.LinkedIn)]:
			out.LinkedIn = ""
		case v.strictness == prompt.Strict && !LinkedInMatches(out.LinkedIn, name):
			out.LinkedIn = ""
		}
	}
	return out
}

func inUse(contacts []model.Contact) (emails, profiles map[string]bool) {
	emails = make(map[string]bool, len(contacts))
	profiles = make(map[string]bool, len(contacts))
	for _, c := range contacts {
		if e := strings.ToLower(strings.TrimSpace(c.Email)); e != "" {
			emails[e] = true
		}
		if l := strings.ToLower(strings.TrimSpace(c.LinkedIn)); l != "" {
			profiles[l] = true
		}
	}
	return emails, profiles
}

// LinkedInMatches reports whether raw is a personal LinkedIn profile URL
// whose slug contains a token longer than two characters from fullName.
func LinkedInMatches(raw, fullName string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() != linkedInHost || !strings.HasPrefix(u.Path, linkedInProfile) {
		return false
	}
	slug := strings.ToLower(strings.TrimPrefix(u.Path, linkedInProfile))
	for _, tok := range strings.Fields(strings.ToLower(fullName)) {
		tok = strings.Trim(tok, ".,'()")
		if len(tok) > 2 && strings.Contains(slug, tok) {
			return true
		}
	}
	return false
}

// EmailMatchesDomain reports whether email's domain equals domain, ignoring
// case and a leading "www.". An empty domain never matches.
func EmailMatchesDomain(email, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(email[at+1:]), "www.")
	return host == domain
}
