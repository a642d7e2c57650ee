// Package upload reads bulk firm uploads (JSON arrays, CSV and XLSX sheets)
// and inserts them as validated rows.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/canonical"
	"github.com/sells-group/investor-cli/internal/model"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Input that does not start with '[' is reported as an apperr KindInput error.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				errCh <- apperr.Input("body must be a JSON array")
				return
			}
			errCh <- apperr.Input("body must be a JSON array: %v", err)
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- apperr.Input("body must be a JSON array")
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "upload: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- apperr.Input("body is not valid JSON: %v", err)
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "upload: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- apperr.Input("body is not valid JSON: %v", err)
		}
	}()

	return outCh, errCh
}

// FirmsFromJSON streams firm rows from a JSON array. Elements that are not
// objects are logged and skipped.
func FirmsFromJSON(ctx context.Context, r io.Reader) (<-chan model.FirmInput, <-chan error) {
	rawCh, rawErrCh := DecodeJSONArray[json.RawMessage](ctx, r)
	outCh := make(chan model.FirmInput, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		i := 0
		for raw := range rawCh {
			i++
			in, err := canonical.DecodeInput(raw)
			if err != nil {
				zap.L().Debug("upload: skipping non-object element", zap.Int("row", i))
				continue
			}
			select {
			case outCh <- in:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "upload: context cancelled")
				return
			}
		}
		if err := <-rawErrCh; err != nil {
			errCh <- err
		}
	}()

	return outCh, errCh
}
