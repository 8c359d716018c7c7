package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/employer-import/internal/importer"
	"github.com/sells-group/employer-import/internal/sheet"
)

var (
	importTenant           string
	importFile             string
	importResolveConflicts bool
	importDryRun           bool
	importStatusFormat     string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Preview and apply employer spreadsheets",
}

var importPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Parse a spreadsheet and classify its rows against the tenant's employers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkImportFlags(); err != nil {
			return err
		}
		if importFile == "" {
			return eris.New("--file is required")
		}
		ctx := cmd.Context()

		rows, err := sheet.ReadFile(ctx, importFile)
		if err != nil {
			return eris.Wrap(err, "import preview")
		}

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sess, err := svc.Preview(ctx, importTenant, importFile, rows)
		if err != nil {
			return eris.Wrap(err, "import preview")
		}
		printPreview(cmd.OutOrStdout(), sess, cfg.Import.DisplayLimit)
		return nil
	},
}

var importCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Apply the previewed session (use --dry-run to simulate)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkImportFlags(); err != nil {
			return err
		}
		ctx := cmd.Context()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sess, err := svc.Current(ctx, importTenant)
		if err != nil {
			return err
		}
		if sess == nil {
			return eris.Errorf("no import in progress for tenant %s, run import preview first", importTenant)
		}

		sess.ResolveConflicts = importResolveConflicts
		if !cmd.Flags().Changed("resolve-conflicts") {
			sess.ResolveConflicts = cfg.Import.ResolveConflicts || sess.ResolveConflicts
		}
		sess.DryRun = importDryRun

		errOut := cmd.ErrOrStderr()
		res, err := svc.Apply(ctx, sess, func(done, total int) {
			fmt.Fprintf(errOut, "progress: %d/%d\n", done, total)
		})
		if res != nil {
			printResult(cmd.OutOrStdout(), res, cfg.Import.DisplayLimit)
		}
		if err != nil {
			return eris.Wrap(err, "import commit")
		}

		zap.L().Info("import commit finished",
			zap.String("tenant_id", importTenant),
			zap.Bool("dry_run", res.DryRun),
			zap.Int("errors", res.Errors),
		)
		if res.SessionExpired {
			return eris.New(importer.SessionExpiredMessage)
		}
		return nil
	},
}

// statusView is the session as printed by import status.
type statusView struct {
	TenantID         string                  `json:"tenant_id" yaml:"tenant_id"`
	FileName         string                  `json:"file_name" yaml:"file_name"`
	UpdatedAt        time.Time               `json:"updated_at" yaml:"updated_at"`
	ResolveConflicts bool                    `json:"resolve_conflicts" yaml:"resolve_conflicts"`
	DryRun           bool                    `json:"dry_run" yaml:"dry_run"`
	Summary          importer.PreviewSummary `json:"summary" yaml:"summary"`
	LastResult       *importer.Result        `json:"last_result,omitempty" yaml:"last_result,omitempty"`
}

var importStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tenant's import in progress",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkImportFlags(); err != nil {
			return err
		}
		ctx := cmd.Context()

		sessions, err := importer.NewFileSessionStore(cfg.Session.Dir)
		if err != nil {
			return err
		}
		sess, err := sessions.Load(ctx, importTenant)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if sess == nil {
			fmt.Fprintf(out, "no import in progress for tenant %s\n", importTenant)
			return nil
		}

		view := statusView{
			TenantID:         sess.TenantID,
			FileName:         sess.FileName,
			UpdatedAt:        sess.UpdatedAt,
			ResolveConflicts: sess.ResolveConflicts,
			DryRun:           sess.DryRun,
			Summary:          sess.Summary(),
			LastResult:       sess.LastResult,
		}
		switch importStatusFormat {
		case "yaml":
			enc := yaml.NewEncoder(out)
			defer enc.Close() //nolint:errcheck
			return eris.Wrap(enc.Encode(view), "encode yaml")
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(view), "encode json")
		case "text", "":
			printPreview(out, sess, cfg.Import.DisplayLimit)
			if sess.LastResult != nil {
				printResult(out, sess.LastResult, cfg.Import.DisplayLimit)
			}
			return nil
		default:
			return eris.Errorf("unknown format %q (text, json or yaml)", importStatusFormat)
		}
	},
}

var importClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the tenant's import in progress",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkImportFlags(); err != nil {
			return err
		}
		sessions, err := importer.NewFileSessionStore(cfg.Session.Dir)
		if err != nil {
			return err
		}
		if err := sessions.Delete(cmd.Context(), importTenant); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared import for tenant %s\n", importTenant)
		return nil
	},
}

func checkImportFlags() error {
	if importTenant == "" {
		return eris.New("--tenant is required")
	}
	return cfg.Validate("import")
}

func printPreview(w io.Writer, sess *importer.Session, limit int) {
	s := sess.Summary()
	fmt.Fprintf(w, "file: %s\n", sess.FileName)
	fmt.Fprintf(w, "to_create: %d  to_update: %d  conflict: %d  invalid: %d  total: %d\n", s.ToCreate, s.ToUpdate, s.Conflicts, s.Invalid, s.Total)

	shown := 0
	for _, c := range sess.Candidates {
		if len(c.Errors) == 0 && len(c.Changes) == 0 {
			continue
		}
		if limit > 0 && shown == limit {
			fmt.Fprintln(w, "  ...")
			break
		}
		shown++
		for _, e := range c.Errors {
			fmt.Fprintf(w, "  Linha %d [%s]: %s\n", c.RowNumber, c.Disposition, e)
		}
		for _, ch := range c.Changes {
			fmt.Fprintf(w, "  Linha %d [%s]: %s\n", c.RowNumber, c.Disposition, ch)
		}
	}
}

func printResult(w io.Writer, res *importer.Result, limit int) {
	mode := "commit"
	if res.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s: created %d, updated %d, reallocated %d, errors %d, skipped %d (%d/%d processed)\n",
		mode, res.Created, res.Updated, res.Reallocated, res.Errors, res.Skipped, res.Processed, res.Total)

	d := res.Display(limit)
	for _, group := range []struct {
		title string
		lines []string
	}{
		{"unique", d.UniqueErrors},
		{"permission", d.RLSErrors},
		{"other", d.OtherErrors},
	} {
		if len(group.lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s errors:\n", group.title)
		for _, l := range group.lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	for _, h := range d.Hints {
		fmt.Fprintln(w, h)
	}
	for _, dup := range res.DuplicateKeys {
		fmt.Fprintf(w, "warning: secondary key %s is held by %d employers\n", dup.Key, len(dup.EmployerIDs))
	}
}

func init() {
	importCmd.PersistentFlags().StringVar(&importTenant, "tenant", "", "tenant id (required)")
	importPreviewCmd.Flags().StringVar(&importFile, "file", "", "spreadsheet to import, .xlsx or .csv (required)")
	importCommitCmd.Flags().BoolVar(&importResolveConflicts, "resolve-conflicts", false, "free conflicting secondary keys from their current holders (default from config)")
	importCommitCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "simulate without writing")
	importStatusCmd.Flags().StringVar(&importStatusFormat, "format", "text", "output format: text, json or yaml")

	importCmd.AddCommand(importPreviewCmd, importCommitCmd, importStatusCmd, importClearCmd)
	rootCmd.AddCommand(importCmd)
}
