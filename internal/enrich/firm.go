package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/generate"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/store"
)

// FirmRequest addresses a firm by id, or by name and website.
type FirmRequest struct {
	FirmID   int64  `json:"firmId"`
	FirmName string `json:"firmName"`
	Website  string `json:"website"`
}

// FirmResult is the generated enrichment and, when the firm is stored, its id.
type FirmResult struct {
	FirmID int64 `json:"firmId,omitempty"`
	Saved  bool  `json:"saved"`
	model.Enrichment
}

// FirmEnricher generates firm-level detail: philosophy, AUM, check size,
// portfolio, exits and news.
type FirmEnricher struct {
	gen     Generator
	store   store.Store
	builder *prompt.Builder
}

// NewFirmEnricher creates a FirmEnricher.
func NewFirmEnricher(gen Generator, st store.Store, s prompt.Strictness) *FirmEnricher {
	return &FirmEnricher{gen: gen, store: st, builder: prompt.NewBuilder(s)}
}

// Enrich generates enrichment for the firm and persists it when the firm
// resolves to a stored row.
func (f *FirmEnricher) Enrich(ctx context.Context, req FirmRequest) (*FirmResult, error) {
	var firm *model.Firm
	var err error
	switch {
	case req.FirmID > 0:
		firm, err = f.store.GetFirm(ctx, req.FirmID)
		if err != nil {
			return nil, err
		}
	case firstNonBlank(req.FirmName) == "":
		return nil, apperr.Input("firmId or firmName is required")
	default:
		website := canonical.NormalizeWebsite(req.Website)
		firm, err = f.store.FindFirmByKey(ctx, canonical.DedupeKey(website, req.FirmName))
		if err != nil {
			return nil, err
		}
	}

	name, website := req.FirmName, req.Website
	if firm != nil {
		name = firstNonBlank(name, firm.FirmName)
		website = firstNonBlank(website, firm.Website)
	}

	text, err := f.builder.EnrichFirm(firstNonBlank(name), website)
	if err != nil {
		return nil, err
	}
	out, err := f.gen.Generate(ctx, generate.Request{Prompt: text, JSON: true, Temperature: 0.2})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: generate firm detail")
	}
	e, err := canonical.Enrichment(out)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse firm detail")
	}

	res := &FirmResult{Enrichment: e}
	if firm == nil {
		return res, nil
	}
	if err := f.store.SaveEnrichment(ctx, firm.ID, e); err != nil {
		return nil, err
	}
	res.FirmID = firm.ID
	res.Saved = true
	zap.L().Info("enrich: firm detail saved", zap.Int64("firm_id", firm.ID))
	return res, nil
}
