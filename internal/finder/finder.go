// Package finder runs the find-investors pipeline: normalize the query,
// prompt the generation service, canonicalize the answer and insert the
// firms the store has not seen yet.
package finder

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/generate"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/store"
	"github.com/sells-group/investor-cli/internal/taxonomy"
)

// Generator is the generation call used by the pipeline. *generate.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (string, error)
	Source() string
}

// Query is a raw find-investors request.
type Query struct {
	EntityType string `json:"entityType"`
	SubType    string `json:"subType"`
	Sector     string `json:"sector"`
	Geo        string `json:"geo"`
}

// Result is the outcome of one run.
type Result struct {
	Added    int          `json:"added"`
	NewFirms []model.Firm `json:"newFirms"`
}

// Finder wires the pipeline's collaborators.
type Finder struct {
	gen     Generator
	store   store.Store
	builder *prompt.Builder
	canon   *canonical.Canonicalizer
	count   int
}

// Option configures a Finder.
type Option func(*Finder)

// WithCount sets how many firms each prompt asks for.
func WithCount(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.count = n
		}
	}
}

// New creates a Finder.
func New(gen Generator, st store.Store, strictness prompt.Strictness, opts ...Option) *Finder {
	f := &Finder{
		gen:     gen,
		store:   st,
		builder: prompt.NewBuilder(strictness),
		canon:   canonical.New(strictness),
		count:   prompt.DefaultCount,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Find runs one pass of the pipeline. A blank geo fails before any
// generation call. Candidates that fail to insert are logged and skipped.
func (f *Finder) Find(ctx context.Context, q Query) (*Result, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))
	start := time.Now()

	cls := taxonomy.Normalize(taxonomy.Classification{
		EntityType: q.EntityType,
		SubType:    q.SubType,
		Sector:     q.Sector,
	})
	pq := prompt.Query{
		EntityType: cls.EntityType,
		SubType:    cls.SubType,
		Sector:     cls.Sector,
		Geo:        strings.TrimSpace(q.Geo),
		Count:      f.count,
	}

	text, err := f.builder.FindInvestors(pq)
	if err != nil {
		return nil, err
	}

	log.Info("finder: generating candidates",
		zap.String("entity_type", pq.EntityType),
		zap.String("sub_type", pq.SubType),
		zap.String("sector", pq.Sector),
		zap.String("geo", pq.Geo),
	)

	out, err := f.gen.Generate(ctx, generate.Request{Prompt: text, JSON: true})
	if err != nil {
		return nil, eris.Wrap(err, "finder: generate")
	}

	candidates, err := f.canon.Candidates(out, canonical.Defaults{
		EntityType: pq.EntityType,
		SubType:    pq.SubType,
		Sector:     pq.Sector,
		Geo:        pq.Geo,
		Source:     f.gen.Source(),
	})
	if err != nil {
		return nil, eris.Wrap(err, "finder: canonicalize")
	}

	res := &Result{NewFirms: []model.Firm{}}
	for i := range candidates {
		c := &candidates[i]
		ins, err := f.store.InsertIfNew(ctx, c)
		if err != nil {
			log.Warn("finder: skipping candidate",
				zap.String("firm", c.FirmName),
				zap.String("website", c.Website),
				zap.Error(err),
			)
			continue
		}
		if !ins.Inserted {
			log.Debug("finder: duplicate candidate", zap.String("firm", c.FirmName), zap.Int64("firm_id", ins.ID))
			continue
		}
		res.NewFirms = append(res.NewFirms, *c)
	}
	res.Added = len(res.NewFirms)

	log.Info("finder: run complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("added", res.Added),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
