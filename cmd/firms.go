package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var firmsCmd = &cobra.Command{
	Use:   "firms",
	Short: "Inspect and manage stored firms",
}

var firmsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored firms, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "firms")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		firms, err := st.ListFirms(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFIRM\tTYPE\tSUB-TYPE\tWEBSITE\tSOURCE\tCONTACTS")
		for _, f := range firms {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
				f.ID, f.FirmName, f.EntityType, f.SubType, f.Website, f.Source, len(f.Contacts))
		}
		return w.Flush()
	},
}

var firmsDeleteID int64

var firmsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a firm by id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if firmsDeleteID <= 0 {
			return fmt.Errorf("--id must be a positive integer")
		}

		st, err := openStore(ctx, "firms")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deleted, err := st.DeleteFirm(ctx, firmsDeleteID)
		if err != nil {
			return err
		}
		if deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "deleted firm %d\n", firmsDeleteID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "firm %d not found\n", firmsDeleteID)
		}
		return nil
	},
}

func init() {
	firmsDeleteCmd.Flags().Int64Var(&firmsDeleteID, "id", 0, "firm id (required)")
	_ = firmsDeleteCmd.MarkFlagRequired("id")
	firmsCmd.AddCommand(firmsListCmd, firmsDeleteCmd)
	rootCmd.AddCommand(firmsCmd)
}
