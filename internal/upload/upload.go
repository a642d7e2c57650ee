package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/store"
)

// Result summarizes an import.
type Result struct {
	Inserted   []model.Firm `json:"inserted"`
	Duplicates int          `json:"duplicates"`
	Skipped    int          `json:"skipped"`
}

// Import canonicalizes and inserts every row from rows. Rows without a
// website or name, and rows the store rejects, are skipped; duplicates are
// counted. The first error from errs aborts the import after the rows
// already read are stored. An import that reads no rows at all is an input
// error.
func Import(ctx context.Context, st store.Store, rows <-chan model.FirmInput, errs <-chan error) (*Result, error) {
	res := &Result{Inserted: []model.Firm{}}
	seen := 0
	for in := range rows {
		seen++
		firm, ok := canonical.Upload(in)
		if !ok {
			res.Skipped++
			continue
		}
		ins, err := st.InsertIfNew(ctx, &firm)
		if err != nil {
			zap.L().Warn("upload: skipping row", zap.Int("row", seen), zap.String("firm", firm.FirmName), zap.Error(err))
			res.Skipped++
			continue
		}
		if !ins.Inserted {
			res.Duplicates++
			continue
		}
		res.Inserted = append(res.Inserted, firm)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if seen == 0 {
		return nil, apperr.Input("upload contained no rows")
	}

	zap.L().Info("upload: import complete",
		zap.Int("rows", seen),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// ReadFile streams firm rows from a .json, .csv or .xlsx file. The file
// stays open until the reader reaches its end, so callers must drain rows
// and then receive from errs.
func ReadFile(ctx context.Context, path string) (<-chan model.FirmInput, <-chan error, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		rows, errs := FirmsFromXLSX(ctx, path, XLSXOptions{})
		return rows, errs, nil
	case ".json", ".csv":
	default:
		return nil, nil, apperr.Input("unsupported upload format %q (want .json, .csv or .xlsx)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "upload: open %s", path)
	}
	rows, errs := readStream(ctx, f, ext)
	return rows, errs, nil
}

// readStream decodes r by file extension and closes r once decoding ends.
// The first decode error, or else a close error, is sent on the returned
// error channel.
func readStream(ctx context.Context, r io.ReadCloser, ext string) (<-chan model.FirmInput, <-chan error) {
	var (
		rows  <-chan model.FirmInput
		inner <-chan error
	)
	if ext == ".csv" {
		rows, inner = FirmsFromCSV(ctx, r)
	} else {
		rows, inner = FirmsFromJSON(ctx, r)
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		var first error
		for err := range inner {
			if first == nil {
				first = err
			}
		}
		if err := r.Close(); err != nil && first == nil {
			first = eris.Wrap(err, "upload: close file")
		}
		if first != nil {
			errCh <- first
		}
	}()
	return rows, errCh
}
