package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var verifyTenant string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that no secondary key is held by more than one active employer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if verifyTenant == "" {
			return eris.New("--tenant is required")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dups, err := st.DuplicateSecondaryKeys(ctx, verifyTenant)
		if err != nil {
			return eris.Wrap(err, "verify")
		}

		out := cmd.OutOrStdout()
		if len(dups) == 0 {
			fmt.Fprintf(out, "ok: every secondary key of tenant %s has a single holder\n", verifyTenant)
			return nil
		}
		for _, d := range dups {
			fmt.Fprintf(out, "%s: %s\n", d.Key, strings.Join(d.EmployerIDs, ", "))
		}
		return eris.Errorf("%d secondary keys are held by more than one employer", len(dups))
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyTenant, "tenant", "", "tenant id (required)")
	rootCmd.AddCommand(verifyCmd)
}
