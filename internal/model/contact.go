package model

import (
	"strings"
)

// Contact is one person at a firm. Unverified fields are empty strings.
type Contact struct {
	ContactName   string `json:"contactName"`
	Designation   string `json:"designation"`
	Email         string `json:"email"`
	LinkedIn      string `json:"linkedIn"`
	ContactNumber string `json:"contactNumber"`
}

// Trim returns a copy with surrounding whitespace removed from every field.
func (c Contact) Trim() Contact {
	return Contact{
		ContactName:   strings.TrimSpace(c.ContactName),
		Designation:   strings.TrimSpace(c.Designation),
		Email:         strings.TrimSpace(c.Email),
		LinkedIn:      strings.TrimSpace(c.LinkedIn),
		ContactNumber: strings.TrimSpace(c.ContactNumber),
	}
}

// mergeKey identifies a contact for duplicate suppression on merge.
func (c Contact) mergeKey() string {
	return strings.ToLower(strings.TrimSpace(c.ContactName)) + "\x00" + strings.ToLower(strings.TrimSpace(c.Email))
}

// MergeContacts appends incoming to existing, skipping any incoming contact
// whose (name, email) pair is already present. Contacts without a name are
// dropped. The result is never nil.
func MergeContacts(existing, incoming []Contact) []Contact {
	out := make([]Contact, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, c := range existing {
		out = append(out, c)
		seen[c.mergeKey()] = true
	}
	for _, c := range incoming {
		c = c.Trim()
		if c.ContactName == "" {
			continue
		}
		k := c.mergeKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// NonNil returns contacts, or an empty slice when contacts is nil.
func NonNil(contacts []Contact) []Contact {
	if contacts == nil {
		return []Contact{}
	}
	return contacts
}
