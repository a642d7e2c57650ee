package upload

import (
	"strings"

	"github.com/sells-group/investor-cli/internal/model"
)

// columnSetters maps a folded header name onto the FirmInput field it fills.
// Contact columns fill a single contact per row.
var columnSetters = map[string]func(*model.FirmInput, *model.Contact, string){
	"firmname":           func(f *model.FirmInput, _ *model.Contact, v string) { f.FirmName = v },
	"firm":               func(f *model.FirmInput, _ *model.Contact, v string) { f.FirmName = v },
	"name":               func(f *model.FirmInput, _ *model.Contact, v string) { f.FirmName = v },
	"website":            func(f *model.FirmInput, _ *model.Contact, v string) { f.Website = v },
	"url":                func(f *model.FirmInput, _ *model.Contact, v string) { f.Website = v },
	"entitytype":         func(f *model.FirmInput, _ *model.Contact, v string) { f.EntityType = v },
	"subtype":            func(f *model.FirmInput, _ *model.Contact, v string) { f.SubType = v },
	"address":            func(f *model.FirmInput, _ *model.Contact, v string) { f.Address = v },
	"country":            func(f *model.FirmInput, _ *model.Contact, v string) { f.Country = v },
	"companylinkedin":    func(f *model.FirmInput, _ *model.Contact, v string) { f.CompanyLinkedIn = v },
	"about":              func(f *model.FirmInput, _ *model.Contact, v string) { f.About = v },
	"investmentstrategy": func(f *model.FirmInput, _ *model.Contact, v string) { f.InvestmentStrategy = v },
	"sector":             func(f *model.FirmInput, _ *model.Contact, v string) { f.Sector = v },
	"sectordetails":      func(f *model.FirmInput, _ *model.Contact, v string) { f.SectorDetails = v },
	"stage":              func(f *model.FirmInput, _ *model.Contact, v string) { f.Stage = v },

	"contactname":   func(_ *model.FirmInput, c *model.Contact, v string) { c.ContactName = v },
	"designation":   func(_ *model.FirmInput, c *model.Contact, v string) { c.Designation = v },
	"title":         func(_ *model.FirmInput, c *model.Contact, v string) { c.Designation = v },
	"email":         func(_ *model.FirmInput, c *model.Contact, v string) { c.Email = v },
	"linkedin":      func(_ *model.FirmInput, c *model.Contact, v string) { c.LinkedIn = v },
	"contactnumber": func(_ *model.FirmInput, c *model.Contact, v string) { c.ContactNumber = v },
	"phone":         func(_ *model.FirmInput, c *model.Contact, v string) { c.ContactNumber = v },
}

// foldHeader lowercases h and drops spaces, underscores and dashes, so
// "Firm Name", "firm_name" and "firmName" all fold to "firmname".
func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rowMapper converts positional rows into FirmInputs using a header row.
type rowMapper struct {
	setters []func(*model.FirmInput, *model.Contact, string)
}

func newRowMapper(header []string) *rowMapper {
	m := &rowMapper{setters: make([]func(*model.FirmInput, *model.Contact, string), len(header))}
	for i, h := range header {
		m.setters[i] = columnSetters[foldHeader(h)]
	}
	return m
}

// known reports whether any header column was recognized.
func (m *rowMapper) known() bool {
	for _, s := range m.setters {
		if s != nil {
			return true
		}
	}
	return false
}

func (m *rowMapper) firm(row []string) model.FirmInput {
	var f model.FirmInput
	var c model.Contact
	for i, v := range row {
		if i >= len(m.setters) || m.setters[i] == nil {
			continue
		}
		m.setters[i](&f, &c, strings.TrimSpace(v))
	}
	if c.ContactName != "" {
		f.Contacts = []model.Contact{c}
	}
	return f
}
