package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testFirm(name, website string) *model.Firm {
	w := canonical.NormalizeWebsite(website)
	return &model.Firm{
		Website:    w,
		FirmName:   name,
		EntityType: "GP",
		SubType:    "Venture Capital",
		Sector:     "Health Care",
		Source:     model.SourceGemini,
		DedupeKey:  canonical.DedupeKey(w, name),
	}
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))

	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestSQLite_InsertIfNew_DedupesWebsiteVariants(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testFirm("Example Capital", "https://Example.com/")
	res, err := st.InsertIfNew(ctx, first)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, res.ID, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	for _, variant := range []string{"example.com", "www.example.com", "http://example.com"} {
		res, err := st.InsertIfNew(ctx, testFirm("Example Capital LLC", variant))
		require.NoError(t, err, variant)
		assert.False(t, res.Inserted, variant)
		assert.Equal(t, first.ID, res.ID, variant)
	}

	firms, err := st.ListFirms(ctx)
	require.NoError(t, err)
	require.Len(t, firms, 1)
	assert.Equal(t, "https://example.com", firms[0].Website)
	assert.Equal(t, "example.com", firms[0].DedupeKey)
}

func TestSQLite_InsertIfNew_NameKeyWhenNoWebsite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.InsertIfNew(ctx, testFirm("Nordic Angels", "N/A"))
	require.NoError(t, err)
	assert.True(t, a.Inserted)

	b, err := st.InsertIfNew(ctx, testFirm("NORDIC  angels", ""))
	require.NoError(t, err)
	assert.False(t, b.Inserted)

	c, err := st.InsertIfNew(ctx, testFirm("Baltic Angels", ""))
	require.NoError(t, err)
	assert.True(t, c.Inserted)

	f, err := st.GetFirm(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "", f.Website)

	_, err = st.InsertIfNew(ctx, &model.Firm{})
	assert.True(t, apperr.Is(err, apperr.KindInput))
}

func TestSQLite_ListFirms_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	empty, err := st.ListFirms(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, w := range []string{"a.com", "b.com", "c.com"} {
		_, err := st.InsertIfNew(ctx, testFirm(w, w))
		require.NoError(t, err)
	}

	firms, err := st.ListFirms(ctx)
	require.NoError(t, err)
	require.Len(t, firms, 3)
	assert.Equal(t, "c.com", firms[0].FirmName)
	assert.Equal(t, "a.com", firms[2].FirmName)
	assert.NotNil(t, firms[0].Contacts)
}

func TestSQLite_GetFirm_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetFirm(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	f, err := st.FindFirmByKey(context.Background(), "missing.com")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestSQLite_DeleteFirm_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.InsertIfNew(ctx, testFirm("Acme", "acme.com"))
	require.NoError(t, err)

	removed, err := st.DeleteFirm(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = st.DeleteFirm(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSQLite_MergeContacts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := testFirm("Acme", "acme.com")
	f.Contacts = []model.Contact{{ContactName: "Jane Smith", Email: "jane@acme.com"}}
	res, err := st.InsertIfNew(ctx, f)
	require.NoError(t, err)

	merged, err := st.MergeContacts(ctx, res.ID, []model.Contact{
		{ContactName: "jane smith", Email: "JANE@acme.com"},
		{ContactName: "Raj Patel", Designation: "CFO"},
	}, model.SourceClaude)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	assert.Equal(t, "Raj Patel", merged[1].ContactName)

	got, err := st.GetContacts(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, merged, got)

	firm, err := st.GetFirm(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SourceClaude, firm.ContactsSource)

	_, err = st.MergeContacts(ctx, 999, nil, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = st.GetContacts(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSQLite_UpdateContacts_FnErrorRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := testFirm("Acme", "acme.com")
	f.Contacts = []model.Contact{{ContactName: "Jane Smith"}}
	res, err := st.InsertIfNew(ctx, f)
	require.NoError(t, err)

	_, err = st.UpdateContacts(ctx, res.ID, func(current []model.Contact) ([]model.Contact, error) {
		return nil, apperr.Input("contact index %d out of range", 5)
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInput))

	got, err := st.GetContacts(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Contact{{ContactName: "Jane Smith"}}, got)
}

func TestSQLite_UpdateContacts_ConcurrentSlots(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := testFirm("Acme", "acme.com")
	f.Contacts = []model.Contact{{ContactName: "A"}, {ContactName: "B"}, {ContactName: "C"}, {ContactName: "D"}}
	res, err := st.InsertIfNew(ctx, f)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, len(f.Contacts))
	for i := range f.Contacts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.UpdateContacts(ctx, res.ID, func(current []model.Contact) ([]model.Contact, error) {
				current[i].Email = current[i].ContactName + "@acme.com"
				return current, nil
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := st.GetContacts(ctx, res.ID)
	require.NoError(t, err)
	for _, c := range got {
		assert.Equal(t, c.ContactName+"@acme.com", c.Email)
	}
}

func TestSQLite_SaveEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.InsertIfNew(ctx, testFirm("Acme", "acme.com"))
	require.NoError(t, err)

	e := model.Enrichment{
		InvestmentPhilosophy:  "Back technical founders.",
		AssetsUnderManagement: "$500M",
		TypicalCheckSize:      "$1M - $5M",
		PortfolioHighlights:   []string{"A", "B"},
		RecentNews:            []model.NewsItem{{Date: "2026-01-02", Headline: "Fund III", Source: "TC", Link: "https://tc.com"}},
	}
	require.NoError(t, st.SaveEnrichment(ctx, res.ID, e))

	f, err := st.GetFirm(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, e, f.Enrichment)

	err = st.SaveEnrichment(ctx, 999, e)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSQLite_FindFirmByKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.InsertIfNew(ctx, testFirm("Acme", "https://www.acme.com/"))
	require.NoError(t, err)

	f, err := st.FindFirmByKey(ctx, canonical.DedupeKey("acme.com", ""))
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, res.ID, f.ID)

	f, err = st.FindFirmByKey(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, f)
}
