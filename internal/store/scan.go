package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-cli/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// scanFirm scans one row selected with firmColumns. No-rows errors are
// returned unwrapped so callers can test them with isNoRows.
func scanFirm(row scannable) (*model.Firm, error) {
	var f model.Firm
	var contactsJSON, portfolioJSON, exitsJSON, newsJSON string

	err := row.Scan(
		&f.ID, &f.DedupeKey, &f.Website, &f.FirmName, &f.EntityType, &f.SubType,
		&f.Address, &f.Country, &f.CompanyLinkedIn, &f.About, &f.InvestmentStrategy, &f.Sector,
		&f.SectorDetails, &f.Stage, &f.Source, &f.Validated, &contactsJSON,
		&f.ContactsSource, &f.CreatedAt,
		&f.InvestmentPhilosophy, &f.AssetsUnderManagement, &f.TypicalCheckSize,
		&portfolioJSON, &exitsJSON, &newsJSON,
	)
	if isNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan firm")
	}

	f.Contacts, err = decodeContacts(contactsJSON)
	if err != nil {
		return nil, err
	}
	if err := decodeOptional(portfolioJSON, &f.PortfolioHighlights); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal portfolio for firm %d", f.ID)
	}
	if err := decodeOptional(exitsJSON, &f.NotableExits); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal exits for firm %d", f.ID)
	}
	if err := decodeOptional(newsJSON, &f.RecentNews); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal news for firm %d", f.ID)
	}
	return &f, nil
}

func decodeContacts(s string) ([]model.Contact, error) {
	var out []model.Contact
	if err := decodeOptional(s, &out); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal contacts")
	}
	return model.NonNil(out), nil
}

func decodeOptional(s string, dst any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

func encodeContacts(c []model.Contact) (string, error) {
	b, err := json.Marshal(model.NonNil(c))
	if err != nil {
		return "", eris.Wrap(err, "store: marshal contacts")
	}
	return string(b), nil
}

// encodeOptional marshals v, storing NULL for empty lists.
func encodeOptional[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal enrichment")
	}
	return string(b), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
