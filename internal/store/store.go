// Package store persists firms behind insert-if-new and contact-merge
// operations keyed on a unique dedupe key.
package store

import (
	"context"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/model"
)

// InsertResult reports the outcome of InsertIfNew.
type InsertResult struct {
	Inserted bool
	ID       int64
}

// ContactsFunc transforms a firm's current contact list.
type ContactsFunc func(current []model.Contact) ([]model.Contact, error)

// Store defines the persistence interface for firms.
type Store interface {
	// InsertIfNew inserts f unless its dedupe key (or website) already
	// exists. On success f.ID and f.CreatedAt are set.
	InsertIfNew(ctx context.Context, f *model.Firm) (InsertResult, error)
	// ListFirms returns every firm, newest first.
	ListFirms(ctx context.Context) ([]model.Firm, error)
	GetFirm(ctx context.Context, id int64) (*model.Firm, error)
	// FindFirmByKey returns nil when no firm has the key.
	FindFirmByKey(ctx context.Context, key string) (*model.Firm, error)
	// DeleteFirm reports whether a row was removed; a missing id is not an error.
	DeleteFirm(ctx context.Context, id int64) (bool, error)

	GetContacts(ctx context.Context, id int64) ([]model.Contact, error)
	// MergeContacts appends contacts per model.MergeContacts and records
	// source as the firm's contacts source.
	MergeContacts(ctx context.Context, id int64, contacts []model.Contact, source string) ([]model.Contact, error)
	// UpdateContacts applies fn to the firm's contacts inside one transaction.
	UpdateContacts(ctx context.Context, id int64, fn ContactsFunc) ([]model.Contact, error)
	SaveEnrichment(ctx context.Context, id int64, e model.Enrichment) error

	Migrate(ctx context.Context) error
	Close() error
}

// failed classifies a datastore failure as apperr.KindStore with a
// caller-safe message. Errors that already carry a kind pass through.
func failed(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Store(err, "%s", msg)
}
