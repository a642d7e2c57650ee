package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/generate"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/store"
)

// ContactFinder discovers new contacts for a stored firm and appends them.
type ContactFinder struct {
	gen       Generator
	store     store.Store
	builder   *prompt.Builder
	validator Validator
	perFirm   int
}

// NewContactFinder creates a ContactFinder asking for perFirm contacts.
func NewContactFinder(gen Generator, st store.Store, s prompt.Strictness, perFirm int) *ContactFinder {
	if perFirm <= 0 {
		perFirm = 2
	}
	return &ContactFinder{
		gen:       gen,
		store:     st,
		builder:   prompt.NewBuilder(s),
		validator: NewValidator(s),
		perFirm:   perFirm,
	}
}

// Find generates candidate contacts for firmID, validates them against the
// firm's domain and existing contacts, and merges them into the stored list.
// People already listed on the firm are skipped.
func (f *ContactFinder) Find(ctx context.Context, firmID int64) ([]model.Contact, error) {
	firm, err := f.store.GetFirm(ctx, firmID)
	if err != nil {
		return nil, err
	}

	text, err := f.builder.FindContacts(firm.FirmName, firm.Website, f.perFirm)
	if err != nil {
		return nil, err
	}
	out, err := f.gen.Generate(ctx, generate.Request{Prompt: text, JSON: true, Temperature: 0.4})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: generate contacts")
	}
	proposed, err := canonical.Contacts(out)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse contacts")
	}
	if len(proposed) > f.perFirm {
		proposed = proposed[:f.perFirm]
	}

	domain := canonical.Domain(firm.Website)
	known := make(map[string]bool, len(firm.Contacts))
	for _, c := range firm.Contacts {
		known[strings.ToLower(strings.TrimSpace(c.ContactName))] = true
	}
	seen := append([]model.Contact(nil), firm.Contacts...)
	accepted := make([]model.Contact, 0, len(proposed))
	for _, c := range proposed {
		if known[strings.ToLower(c.ContactName)] {
			continue
		}
		fields := f.validator.Fields(c, c.ContactName, domain, seen)
		c.Email, c.LinkedIn, c.ContactNumber = fields.Email, fields.LinkedIn, fields.ContactNumber
		accepted = append(accepted, c)
		seen = append(seen, c)
	}

	merged, err := f.store.MergeContacts(ctx, firm.ID, accepted, f.gen.Source())
	if err != nil {
		return nil, err
	}
	zap.L().Info("enrich: contacts discovered",
		zap.Int64("firm_id", firm.ID),
		zap.Int("proposed", len(proposed)),
		zap.Int("total", len(merged)),
	)
	return merged, nil
}
