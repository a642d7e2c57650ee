package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/db"
	"github.com/sells-group/investor-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// migrationLockID serializes concurrent Migrate calls across processes.
const migrationLockID = 7305517

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Migrate applies pending migrations. Every transaction takes the
// transaction-scoped advisory lock, so the lock cannot outlive its session
// and concurrent migrators re-check schema_migrations after waiting.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockMigrations(ctx, tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version    INTEGER PRIMARY KEY,
				name       TEXT NOT NULL,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		return eris.Wrap(err, "postgres: ensure migration table")
	}); err != nil {
		return err
	}

	for _, m := range migrations {
		if err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			return applyMigration(ctx, tx, m)
		}); err != nil {
			return err
		}
	}
	return nil
}

func lockMigrations(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID)
	return eris.Wrap(err, "postgres: acquire migration lock")
}

func applyMigration(ctx context.Context, tx pgx.Tx, m migration) error {
	if err := lockMigrations(ctx, tx); err != nil {
		return err
	}

	var applied bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
	).Scan(&applied); err != nil {
		return eris.Wrapf(err, "postgres: check migration %d", m.Version)
	}
	if applied {
		return nil
	}

	zap.L().Info("applying migration",
		zap.String("component", "store.migrate"),
		zap.Int("version", m.Version),
		zap.String("name", m.Name),
	)
	if _, err := tx.Exec(ctx, m.Postgres); err != nil {
		return eris.Wrapf(err, "postgres: apply migration %d (%s)", m.Version, m.Name)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name,
	); err != nil {
		return eris.Wrapf(err, "postgres: record migration %d", m.Version)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertIfNew(ctx context.Context, f *model.Firm) (InsertResult, error) {
	if f.DedupeKey == "" {
		return InsertResult{}, apperr.Input("firm has no website or name")
	}
	contactsJSON, err := encodeContacts(f.Contacts)
	if err != nil {
		return InsertResult{}, err
	}
	now := time.Now().UTC()

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO firms (dedupe_key, website, firm_name, entity_type, sub_type, address, country,
			company_linkedin, about, investment_strategy, sector, sector_details, stage,
			source, validated, contacts_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
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
		return InsertResult{}, failed(eris.Wrapf(err, "postgres: insert firm %q", f.DedupeKey), "could not save firm")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id FROM firms WHERE dedupe_key = $1 OR website = $2 LIMIT 1`,
		f.DedupeKey, nullIfEmpty(f.Website),
	).Scan(&id)
	if err != nil {
		return InsertResult{}, failed(eris.Wrapf(err, "postgres: lookup existing firm %q", f.DedupeKey), "could not save firm")
	}
	return InsertResult{ID: id}, nil
}

func (s *PostgresStore) ListFirms(ctx context.Context) ([]model.Firm, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+firmColumns+` FROM firms ORDER BY id DESC`)
	if err != nil {
		return nil, failed(eris.Wrap(err, "postgres: list firms"), "could not list firms")
	}
	defer rows.Close()

	firms := []model.Firm{}
	for rows.Next() {
		f, err := scanFirm(rows)
		if err != nil {
			return nil, failed(err, "could not list firms")
		}
		firms = append(firms, *f)
	}
	return firms, failed(eris.Wrap(rows.Err(), "postgres: list firms iterate"), "could not list firms")
}

func (s *PostgresStore) GetFirm(ctx context.Context, id int64) (*model.Firm, error) {
	f, err := scanFirm(s.pool.QueryRow(ctx, `SELECT `+firmColumns+` FROM firms WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, apperr.NotFound("firm %d not found", id)
	}
	if err != nil {
		return nil, failed(err, "could not load firm")
	}
	return f, nil
}

func (s *PostgresStore) FindFirmByKey(ctx context.Context, key string) (*model.Firm, error) {
	if key == "" {
		return nil, nil
	}
	f, err := scanFirm(s.pool.QueryRow(ctx, `SELECT `+firmColumns+` FROM firms WHERE dedupe_key = $1`, key))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, failed(err, "could not load firm")
	}
	return f, nil
}

func (s *PostgresStore) DeleteFirm(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM firms WHERE id = $1`, id)
	if err != nil {
		return false, failed(eris.Wrapf(err, "postgres: delete firm %d", id), "could not delete firm")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetContacts(ctx context.Context, id int64) ([]model.Contact, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT contacts_json FROM firms WHERE id = $1`, id).Scan(&raw)
	if isNoRows(err) {
		return nil, apperr.NotFound("firm %d not found", id)
	}
	if err != nil {
		return nil, failed(eris.Wrapf(err, "postgres: get contacts %d", id), "could not load contacts")
	}
	contacts, err := decodeContacts(raw)
	return contacts, failed(err, "could not load contacts")
}

func (s *PostgresStore) MergeContacts(ctx context.Context, id int64, contacts []model.Contact, source string) ([]model.Contact, error) {
	return s.mutateContacts(ctx, id, source, func(current []model.Contact) ([]model.Contact, error) {
		return model.MergeContacts(current, contacts), nil
	})
}

func (s *PostgresStore) UpdateContacts(ctx context.Context, id int64, fn ContactsFunc) ([]model.Contact, error) {
	return s.mutateContacts(ctx, id, "", fn)
}

func (s *PostgresStore) mutateContacts(ctx context.Context, id int64, source string, fn ContactsFunc) ([]model.Contact, error) {
	var next []model.Contact
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var raw string
		err := tx.QueryRow(ctx, `SELECT contacts_json FROM firms WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
		if isNoRows(err) {
			return apperr.NotFound("firm %d not found", id)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: read contacts %d", id)
		}
		current, err := decodeContacts(raw)
		if err != nil {
			return err
		}

		next, err = fn(current)
		if err != nil {
			return err
		}
		next = model.NonNil(next)
		encoded, err := encodeContacts(next)
		if err != nil {
			return err
		}

		if source != "" {
			_, err = tx.Exec(ctx, `UPDATE firms SET contacts_json = $1, contacts_source = $2 WHERE id = $3`, encoded, source, id)
		} else {
			_, err = tx.Exec(ctx, `UPDATE firms SET contacts_json = $1 WHERE id = $2`, encoded, id)
		}
		return eris.Wrapf(err, "postgres: write contacts %d", id)
	})
	if err != nil {
		return nil, failed(err, "could not update contacts")
	}
	return next, nil
}

func (s *PostgresStore) SaveEnrichment(ctx context.Context, id int64, e model.Enrichment) error {
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

	tag, err := s.pool.Exec(ctx, `
		UPDATE firms SET philosophy = $1, aum = $2, check_size = $3,
			portfolio_json = $4, exits_json = $5, news_json = $6
		WHERE id = $7`,
		nullIfEmpty(e.InvestmentPhilosophy), nullIfEmpty(e.AssetsUnderManagement), nullIfEmpty(e.TypicalCheckSize),
		portfolio, exits, news, id,
	)
	if err != nil {
		return failed(eris.Wrapf(err, "postgres: save enrichment %d", id), "could not save enrichment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("firm %d not found", id)
	}
	return nil
}
