// Package enrich fills in contact and firm-level detail for stored firms.
package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/generate"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/store"
	"github.com/sells-group/investor-cli/pkg/google"
)

// Generator is the generation call used by the enrichment flows.
// *generate.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (string, error)
	Source() string
}

// ContactRequest identifies one contact slot to enrich.
type ContactRequest struct {
	FirmID       int64         `json:"firmId"`
	FirmName     string        `json:"firmName"`
	FirmWebsite  string        `json:"firmWebsite"`
	ContactIndex int           `json:"contactIndex"`
	Contact      model.Contact `json:"contact"`
}

// ContactEnricher researches a single contact and writes the validated
// email, LinkedIn and phone back into its slot.
type ContactEnricher struct {
	gen       Generator
	store     store.Store
	search    google.Client
	builder   *prompt.Builder
	validator Validator
	results   int
}

// ContactOption configures a ContactEnricher.
type ContactOption func(*ContactEnricher)

// WithSearch enables web-search evidence gathering.
func WithSearch(c google.Client, results int) ContactOption {
	return func(e *ContactEnricher) {
		e.search = c
		if results > 0 {
			e.results = results
		}
	}
}

// NewContactEnricher creates a ContactEnricher.
func NewContactEnricher(gen Generator, st store.Store, s prompt.Strictness, opts ...ContactOption) *ContactEnricher {
	e := &ContactEnricher{
		gen:       gen,
		store:     st,
		builder:   prompt.NewBuilder(s),
		validator: NewValidator(s),
		results:   5,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich runs research, extraction and validation for one contact slot and
// returns the firm's updated contact list. A failed generation call leaves
// the stored contacts untouched; rejected fields are stored as "".
func (e *ContactEnricher) Enrich(ctx context.Context, req ContactRequest) ([]model.Contact, error) {
	name := strings.TrimSpace(req.Contact.ContactName)
	if req.FirmID <= 0 || name == "" {
		return nil, apperr.Input("firmId and contact.contactName are required")
	}

	firm, err := e.store.GetFirm(ctx, req.FirmID)
	if err != nil {
		return nil, err
	}
	if req.ContactIndex < 0 || req.ContactIndex >= len(firm.Contacts) {
		return nil, apperr.Input("contact index %d out of range", req.ContactIndex)
	}

	firmName := firstNonBlank(req.FirmName, firm.FirmName)
	domain := canonical.Domain(firstNonBlank(req.FirmWebsite, firm.Website))
	log := zap.L().With(zap.Int64("firm_id", firm.ID), zap.Int("contact_index", req.ContactIndex))

	evidence := e.research(ctx, name, firmName, domain)

	text, err := e.builder.EnrichContact(prompt.ContactQuery{
		Name:        name,
		Designation: req.Contact.Designation,
		FirmName:    firmName,
		Domain:      domain,
		Evidence:    evidence,
	})
	if err != nil {
		return nil, err
	}
	out, err := e.gen.Generate(ctx, generate.Request{Prompt: text, JSON: true, MaxTokens: 256})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: generate contact")
	}
	proposed, err := canonical.ContactFields(out)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse contact")
	}

	contacts, err := e.store.UpdateContacts(ctx, firm.ID, func(current []model.Contact) ([]model.Contact, error) {
		idx := req.ContactIndex
		if idx >= len(current) {
			return nil, apperr.Input("contact index %d out of range", idx)
		}
		others := make([]model.Contact, 0, len(current)-1)
		others = append(others, current[:idx]...)
		others = append(others, current[idx+1:]...)

		fields := e.validator.Fields(proposed, name, domain, others)
		current[idx].Email = fields.Email
		current[idx].LinkedIn = fields.LinkedIn
		current[idx].ContactNumber = fields.ContactNumber
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("enrich: contact updated",
		zap.Int("evidence", len(evidence)),
		zap.Bool("email", contacts[req.ContactIndex].Email != ""),
		zap.Bool("linkedin", contacts[req.ContactIndex].LinkedIn != ""),
	)
	return contacts, nil
}

// research returns search snippets about the person. Search failures are
// logged and treated as no evidence.
func (e *ContactEnricher) research(ctx context.Context, name, firmName, domain string) []string {
	if e.search == nil {
		return nil
	}
	q := `"` + name + `" "` + firmName + `" site:linkedin.com`
	if domain != "" {
		q += " OR " + domain
	}
	resp, err := e.search.Search(ctx, q, e.results)
	if err != nil {
		zap.L().Warn("enrich: search failed, continuing without evidence", zap.Error(err))
		return nil
	}
	return resp.Evidence()
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
