package upload

import (
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/model"
)

// FirmsFromCSV streams firm rows from CSV with a header row. Columns are
// matched by folded header name; unknown columns are ignored.
// Both channels are closed when processing completes.
func FirmsFromCSV(ctx context.Context, r io.Reader) (<-chan model.FirmInput, <-chan error) {
	outCh := make(chan model.FirmInput, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		mapper := newRowMapper(header)
		if !mapper.known() {
			errCh <- apperr.Input("csv header has no recognized columns")
			return
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case outCh <- mapper.firm(record):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}
