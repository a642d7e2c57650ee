package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		log.Info("applying migration", zap.Int("version", m.Version), zap.String("name", m.Name))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrapf(err, "sqlite: begin migration %d", m.Version)
		}
		if _, err := tx.ExecContext(ctx, m.SQLite); err != nil {
			tx.Rollback() //nolint:errcheck
			return eris.Wrapf(err, "sqlite: apply migration %d (%s)", m.Version, m.Name)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name,
		); err != nil {
			tx.Rollback() //nolint:errcheck
			return eris.Wrapf(err, "sqlite: record migration %d", m.Version)
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "sqlite: commit migration %d", m.Version)
		}
	}
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied migrations")
	}
	defer rows.Close() //nolint:errcheck

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan migration row")
		}
		applied[v] = true
	}
	return applied, eris.Wrap(rows.Err(), "sqlite: iterate migrations")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertIfNew(ctx context.Context, f *model.Firm) (InsertResult, error) {
	if f.DedupeKey == "" {
		return InsertResult{}, apperr.Input("firm has no website or name")
	}
	contactsJSON, err := encodeContacts(f.Contacts)
	if err != nil {
		return InsertResult{}, err
	}
	now := time.Now().UTC()

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO firms (dedupe_key, website, firm_name, entity_type, sub_type, address, country,
			company_linkedin, about, investment_strategy, sector, sector_details, stage,
			source, validated, contacts_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		f.DedupeKey, nullIfEmpty(f.Website), f.FirmName, f.EntityType, f.SubType, f.Address, f.Country,
		f.CompanyLinkedIn, f.About, f.InvestmentStrategy, f.Sector, f.SectorDetails, f.Stage,
		f.Source, f.Validated, contactsJSON, now,
	).Scan(&id)
	switch {
	case err == nil:
		f.ID = id
		f.CreatedAt = now
		f.Contacts = model.NonNil(f.Contacts)
		return InsertResult{Inserted: true, ID: id}, nil
	case !isNoRows(err):
		return InsertResult{}, failed(eris.Wrapf(err, "sqlite: insert firm %q", f.DedupeKey), "could not save firm")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM firms WHERE dedupe_key = ? OR website = ? LIMIT 1`,
		f.DedupeKey, nullIfEmpty(f.Website),
	).Scan(&id)
	if err != nil {
		return InsertResult{}, failed(eris.Wrapf(err, "sqlite: lookup existing firm %q", f.DedupeKey), "could not save firm")
	}
	return InsertResult{ID: id}, nil
}

func (s *SQLiteStore) ListFirms(ctx context.Context) ([]model.Firm, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+firmColumns+` FROM firms ORDER BY id DESC`)
	if err != nil {
		return nil, failed(eris.Wrap(err, "sqlite: list firms"), "could not list firms")
	}
	defer rows.Close() //nolint:errcheck

	firms := []model.Firm{}
	for rows.Next() {
		f, err := scanFirm(rows)
		if err != nil {
			return nil, failed(err, "could not list firms")
		}
		firms = append(firms, *f)
	}
	return firms, failed(eris.Wrap(rows.Err(), "sqlite: list firms iterate"), "could not list firms")
}

func (s *SQLiteStore) GetFirm(ctx context.Context, id int64) (*model.Firm, error) {
	f, err := scanFirm(s.db.QueryRowContext(ctx, `SELECT `+firmColumns+` FROM firms WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, apperr.NotFound("firm %d not found", id)
	}
	if err != nil {
		return nil, failed(err, "could not load firm")
	}
	return f, nil
}

func (s *SQLiteStore) FindFirmByKey(ctx context.Context, key string) (*model.Firm, error) {
	if key == "" {
		return nil, nil
	}
	f, err := scanFirm(s.db.QueryRowContext(ctx, `SELECT `+firmColumns+` FROM firms WHERE dedupe_key = ?`, key))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, failed(err, "could not load firm")
	}
	return f, nil
}

func (s *SQLiteStore) DeleteFirm(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM firms WHERE id = ?`, id)
	if err != nil {
		return false, failed(eris.Wrapf(err, "sqlite: delete firm %d", id), "could not delete firm")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, failed(eris.Wrap(err, "sqlite: rows affected"), "could not delete firm")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetContacts(ctx context.Context, id int64) ([]model.Contact, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT contacts_json FROM firms WHERE id = ?`, id).Scan(&raw)
	if isNoRows(err) {
		return nil, apperr.NotFound("firm %d not found", id)
	}
	if err != nil {
		return nil, failed(eris.Wrapf(err, "sqlite: get contacts %d", id), "could not load contacts")
	}
	contacts, err := decodeContacts(raw)
	return contacts, failed(err, "could not load contacts")
}

func (s *SQLiteStore) MergeContacts(ctx context.Context, id int64, contacts []model.Contact, source string) ([]model.Contact, error) {
	return s.mutateContacts(ctx, id, source, func(current []model.Contact) ([]model.Contact, error) {
		return model.MergeContacts(current, contacts), nil
	})
}

func (s *SQLiteStore) UpdateContacts(ctx context.Context, id int64, fn ContactsFunc) ([]model.Contact, error) {
	return s.mutateContacts(ctx, id, "", fn)
}

func (s *SQLiteStore) mutateContacts(ctx context.Context, id int64, source string, fn ContactsFunc) ([]model.Contact, error) {
	next, err := s.writeContacts(ctx, id, source, fn)
	if err != nil {
		return nil, failed(err, "could not update contacts")
	}
	return next, nil
}

// writeContacts runs a read-modify-write of contacts_json in one
// transaction. The leading no-op UPDATE takes the write lock before the read
// and doubles as the existence check.
func (s *SQLiteStore) writeContacts(ctx context.Context, id int64, source string, fn ContactsFunc) ([]model.Contact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin contacts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE firms SET contacts_json = contacts_json WHERE id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: lock firm %d", id)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return nil, err
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT contacts_json FROM firms WHERE id = ?`, id).Scan(&raw); err != nil {
		return nil, eris.Wrapf(err, "sqlite: read contacts %d", id)
	}
	current, err := decodeContacts(raw)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next = model.NonNil(next)
	encoded, err := encodeContacts(next)
	if err != nil {
		return nil, err
	}

	query := `UPDATE firms SET contacts_json = ? WHERE id = ?`
	args := []any{encoded, id}
	if source != "" {
		query = `UPDATE firms SET contacts_json = ?, contacts_source = ? WHERE id = ?`
		args = []any{encoded, source, id}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, eris.Wrapf(err, "sqlite: write contacts %d", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit contacts tx")
	}
	return next, nil
}

func (s *SQLiteStore) SaveEnrichment(ctx context.Context, id int64, e model.Enrichment) error {
	portfolio, err := encodeOptional(e.PortfolioHighlights)
	if err != nil {
		return err
	}
	exits, err := encodeOptional(e.NotableExits)
	if err != nil {
		return err
	}
	news, err := encodeOptional(e.RecentNews)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE firms SET philosophy = ?, aum = ?, check_size = ?,
			portfolio_json = ?, exits_json = ?, news_json = ?
		WHERE id = ?`,
		nullIfEmpty(e.InvestmentPhilosophy), nullIfEmpty(e.AssetsUnderManagement), nullIfEmpty(e.TypicalCheckSize),
		portfolio, exits, news, id,
	)
	if err != nil {
		return failed(eris.Wrapf(err, "sqlite: save enrichment %d", id), "could not save enrichment")
	}
	return failed(checkRowsAffected(res, id), "could not save enrichment")
}

// helpers

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return apperr.NotFound("firm %d not found", id)
	}
	return nil
}
