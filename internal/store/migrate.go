package store

// migration is one schema version. Each dialect carries its own DDL.
type migration struct {
	Version  int
	Name     string
	SQLite   string
	Postgres string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_firms",
		SQLite: `
CREATE TABLE IF NOT EXISTS firms (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	dedupe_key          TEXT NOT NULL UNIQUE,
	website             TEXT UNIQUE,
	firm_name           TEXT NOT NULL DEFAULT '',
	entity_type         TEXT NOT NULL DEFAULT '',
	sub_type            TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	company_linkedin    TEXT NOT NULL DEFAULT '',
	about               TEXT NOT NULL DEFAULT '',
	investment_strategy TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	sector_details      TEXT NOT NULL DEFAULT '',
	stage               TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL DEFAULT '',
	validated           INTEGER NOT NULL DEFAULT 0,
	contacts_json       TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_firms_entity_type ON firms(entity_type);
`,
		Postgres: `
CREATE TABLE IF NOT EXISTS firms (
	id                  BIGSERIAL PRIMARY KEY,
	dedupe_key          TEXT NOT NULL UNIQUE,
	website             TEXT UNIQUE,
	firm_name           TEXT NOT NULL DEFAULT '',
	entity_type         TEXT NOT NULL DEFAULT '',
	sub_type            TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	company_linkedin    TEXT NOT NULL DEFAULT '',
	about               TEXT NOT NULL DEFAULT '',
	investment_strategy TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	sector_details      TEXT NOT NULL DEFAULT '',
	stage               TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL DEFAULT '',
	validated           BOOLEAN NOT NULL DEFAULT false,
	contacts_json       TEXT NOT NULL DEFAULT '[]',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_firms_entity_type ON firms(entity_type);
`,
	},
	{
		Version: 2,
		Name:    "firm_enrichment",
		SQLite: `
ALTER TABLE firms ADD COLUMN philosophy TEXT;
ALTER TABLE firms ADD COLUMN aum TEXT;
ALTER TABLE firms ADD COLUMN check_size TEXT;
ALTER TABLE firms ADD COLUMN portfolio_json TEXT;
ALTER TABLE firms ADD COLUMN exits_json TEXT;
ALTER TABLE firms ADD COLUMN news_json TEXT;
`,
		Postgres: `
ALTER TABLE firms
	ADD COLUMN IF NOT EXISTS philosophy TEXT,
	ADD COLUMN IF NOT EXISTS aum TEXT,
	ADD COLUMN IF NOT EXISTS check_size TEXT,
	ADD COLUMN IF NOT EXISTS portfolio_json TEXT,
	ADD COLUMN IF NOT EXISTS exits_json TEXT,
	ADD COLUMN IF NOT EXISTS news_json TEXT;
`,
	},
	{
		Version:  3,
		Name:     "contacts_source",
		SQLite:   `ALTER TABLE firms ADD COLUMN contacts_source TEXT;`,
		Postgres: `ALTER TABLE firms ADD COLUMN IF NOT EXISTS contacts_source TEXT;`,
	},
}

// firmColumns is the select list scanned by scanFirm. Nullable columns are
// coalesced so both drivers scan into plain strings.
const firmColumns = `id, dedupe_key, COALESCE(website, ''), firm_name, entity_type, sub_type,
	address, country, company_linkedin, about, investment_strategy, sector,
	sector_details, stage, source, validated, contacts_json,
	COALESCE(contacts_source, ''), created_at,
	COALESCE(philosophy, ''), COALESCE(aum, ''), COALESCE(check_size, ''),
	COALESCE(portfolio_json, ''), COALESCE(exits_json, ''), COALESCE(news_json, '')`
