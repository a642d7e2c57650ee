package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/investor-cli/internal/finder"
)

var findQuery finder.Query

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Run one find-investors query and print the new firms as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "find")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Finder.Find(ctx, findQuery)
		if err != nil {
			return eris.Wrap(err, "find investors")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	findCmd.Flags().StringVar(&findQuery.EntityType, "entity-type", "", "entity type (LP, GP, Broker, Other)")
	findCmd.Flags().StringVar(&findQuery.SubType, "sub-type", "", "sub-type, e.g. \"Family Office\"")
	findCmd.Flags().StringVar(&findQuery.Sector, "sector", "", "sector focus")
	findCmd.Flags().StringVar(&findQuery.Geo, "geo", "", "geography (required)")
	_ = findCmd.MarkFlagRequired("geo")
	rootCmd.AddCommand(findCmd)
}
