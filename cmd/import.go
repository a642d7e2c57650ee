package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/upload"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import firms from a JSON, CSV or XLSX file as validated uploads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, errs, err := upload.ReadFile(ctx, importFilePath)
		if err != nil {
			return err
		}
		res, err := upload.Import(ctx, st, rows, errs)
		if err != nil {
			return eris.Wrapf(err, "import %s", importFilePath)
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("inserted", len(res.Inserted)),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("skipped", res.Skipped),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d duplicates=%d skipped=%d\n",
			len(res.Inserted), res.Duplicates, res.Skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to a .json, .csv or .xlsx file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
