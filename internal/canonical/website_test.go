package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebsiteKey_Variants(t *testing.T) {
	for _, raw := range []string{
		"https://Example.com/",
		"example.com",
		"www.example.com",
		"http://WWW.EXAMPLE.COM",
		"  example.com/  ",
	} {
		assert.Equal(t, "example.com", WebsiteKey(raw), raw)
	}
}

func TestNormalizeWebsite(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"example.com", "https://example.com"},
		{"https://Example.com/", "https://example.com"},
		{"http://www.Acme.com/funds/", "http://acme.com/funds"},
		{"acme.com/team?ref=x", "https://acme.com/team?ref=x"},
		{"https://acme.com/#about", "https://acme.com"},
		{"N/A", ""},
		{"", ""},
		{"  none ", ""},
		{"https://%zz.com/", "https://%zz.com"},
		{"www.", ""},
		{"https://www./", ""},
		{"WWW.:8080/team", ""},
		{"http://www./%zz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWebsite(tt.raw))
		})
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "acme.com", Domain("https://www.Acme.com/team?x=1"))
	assert.Equal(t, "acme.com", Domain("acme.com:8443"))
	assert.Equal(t, "", Domain("N/A"))
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "example.com", DedupeKey("https://www.example.com/", "Example Capital"))
	assert.Equal(t, "name:societe generale", DedupeKey("N/A", "  Société   Générale "))
	assert.Equal(t, "name:acme capital", DedupeKey("", "ACME Capital"))
	assert.Equal(t, "", DedupeKey("", "  "))
	assert.Equal(t, "name:acme capital", DedupeKey("www.", "Acme Capital"))
	assert.Equal(t, "name:beta partners", DedupeKey("https://www./", "Beta Partners"))
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"", "N/A", "none", "-", "NULL", "Unknown", "tbd"} {
		assert.True(t, IsPlaceholder(v), v)
	}
	assert.False(t, IsPlaceholder("acme.com"))
}
