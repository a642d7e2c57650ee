package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "upload.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestImport_JSON(t *testing.T) {
	st := newTestStore(t)
	body := `[
		{"firmName":"Acme Capital","website":"https://acme.com/","entityType":"gp","subType":"vc"},
		{"firmName":"Acme Again","website":"www.acme.com"},
		{"website":"","firmName":""},
		{"firmName":"Nordic Angels"}
	]`

	rows, errs := FirmsFromJSON(context.Background(), strings.NewReader(body))
	res, err := Import(context.Background(), st, rows, errs)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 2)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Skipped)

	acme := res.Inserted[0]
	assert.Equal(t, model.SourceUpload, acme.Source)
	assert.True(t, acme.Validated)
	assert.Equal(t, "GP", acme.EntityType)
	assert.Equal(t, "Venture Capital", acme.SubType)
	assert.Equal(t, "", acme.About)
	assert.NotZero(t, acme.ID)

	firms, err := st.ListFirms(context.Background())
	require.NoError(t, err)
	assert.Len(t, firms, 2)
}

func TestImport_NotAnArray(t *testing.T) {
	rows, errs := FirmsFromJSON(context.Background(), strings.NewReader(`{"firmName":"Acme"}`))
	_, err := Import(context.Background(), newTestStore(t), rows, errs)
	require.Error(t, err)
	assert.Equal(t, 400, apperr.HTTPStatus(err))
}

func TestImport_EmptyArray(t *testing.T) {
	rows, errs := FirmsFromJSON(context.Background(), strings.NewReader(`[]`))
	_, err := Import(context.Background(), newTestStore(t), rows, errs)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInput))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "firms.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("firm,url\nAcme,acme.com\n"), 0o600))

	rows, errs, err := ReadFile(context.Background(), csvPath)
	require.NoError(t, err)
	got, err := collect(t, rows, errs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acme.com", got[0].Website)

	_, _, err = ReadFile(context.Background(), filepath.Join(dir, "firms.txt"))
	assert.Error(t, err)

	_, _, err = ReadFile(context.Background(), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestReadFile_JSONImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firms.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"firmName":"Acme","website":"acme.com"},{"firmName":"Beta","website":"beta.vc"}]`), 0o600))

	rows, errs, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	res, err := Import(context.Background(), newTestStore(t), rows, errs)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 2)
}

// trackingReader records Close calls on top of a strings.Reader.
type trackingReader struct {
	*strings.Reader
	closed atomic.Bool
}

func (r *trackingReader) Close() error {
	r.closed.Store(true)
	return nil
}

func TestReadStream_ClosesAfterDrain(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		body    string
		rows    int
		wantErr bool
	}{
		{name: "json", ext: ".json", body: `[{"firmName":"Acme"},{"firmName":"Beta"}]`, rows: 2},
		{name: "csv", ext: ".csv", body: "firm,url\nAcme,acme.com\n", rows: 1},
		{name: "json_not_array", ext: ".json", body: `{"firmName":"Acme"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &trackingReader{Reader: strings.NewReader(tt.body)}
			rows, errs := readStream(context.Background(), r, tt.ext)

			got, err := collect(t, rows, errs)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, got, tt.rows)
			assert.True(t, r.closed.Load())
		})
	}
}
