package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/employer-import/internal/config"
	"github.com/sells-group/employer-import/internal/employer"
)

const testTenant = "t1"

// setupImportEnv points cfg at a temp SQLite database and session dir and
// resets the import flags.
func setupImportEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(dir, "employers.db")
	cfg.Import.BatchSize = 50
	cfg.Import.DisplayLimit = 20
	cfg.Session.Dir = filepath.Join(dir, "sessions")
	cfg.Retry.MaxAttempts = 1

	importTenant = testTenant
	importFile = ""
	importResolveConflicts = false
	importDryRun = false
	importStatusFormat = "text"
	verifyTenant = ""
	return dir
}

func runCommand(t *testing.T, c *cobra.Command) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetContext(context.Background())
	t.Cleanup(func() {
		c.SetOut(nil)
		c.SetErr(nil)
	})
	err := c.RunE(c, nil)
	return out.String(), err
}

func seedEmployer(t *testing.T, e *employer.Employer) {
	t.Helper()
	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Insert(context.Background(), e))
}

func writeSheet(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "empresas.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCmd_RequiresTenant(t *testing.T) {
	setupImportEnv(t)
	importTenant = ""

	_, err := runCommand(t, importPreviewCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant is required")
}

func TestImportCmd_PreviewRequiresFile(t *testing.T) {
	setupImportEnv(t)

	_, err := runCommand(t, importPreviewCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file is required")
}

func TestImportCmd_PreviewBadPath(t *testing.T) {
	setupImportEnv(t)
	importFile = "/nonexistent/empresas.xlsx"

	_, err := runCommand(t, importPreviewCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import preview")
}

func TestImportCmd_CommitWithoutPreview(t *testing.T) {
	setupImportEnv(t)

	_, err := runCommand(t, importCommitCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run import preview first")
}

func TestImportCmd_FullFlow(t *testing.T) {
	dir := setupImportEnv(t)
	seedEmployer(t, &employer.Employer{TenantID: testTenant, TaxID: "33000167000101", SecondaryKey: "000010", Name: "E2"})

	importFile = writeSheet(t, dir, "ID,Nome,CNPJ\n"+
		"10,Nova,60701190000104\n"+
		"11,,00000000000191\n")

	out, err := runCommand(t, importPreviewCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "to_create: 0  to_update: 0  conflict: 1  invalid: 1  total: 2")
	assert.Contains(t, out, "Código 000010 já pertence a E2 (CNPJ 33000167000101)")
	assert.Contains(t, out, "Nome ausente")

	importStatusFormat = "yaml"
	out, err = runCommand(t, importStatusCmd)
	require.NoError(t, err)
	var view statusView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, testTenant, view.TenantID)
	assert.Equal(t, 1, view.Summary.Conflicts)

	// Without resolving, the conflict is skipped.
	importDryRun = true
	out, err = runCommand(t, importCommitCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run: created 0, updated 0, reallocated 0, errors 0, skipped 2")

	importDryRun = false
	importResolveConflicts = true
	require.NoError(t, importCommitCmd.Flags().Set("resolve-conflicts", "true"))
	t.Cleanup(func() { importCommitCmd.Flags().Lookup("resolve-conflicts").Changed = false })
	out, err = runCommand(t, importCommitCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "commit: created 1, updated 0, reallocated 1, errors 0, skipped 1")
	assert.Contains(t, out, "progress: 1/1")

	out, err = runCommand(t, importStatusCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "no import in progress")

	verifyTenant = testTenant
	out, err = runCommand(t, verifyCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "ok:")
}

func TestImportCmd_StatusUnknownFormat(t *testing.T) {
	dir := setupImportEnv(t)
	importFile = writeSheet(t, dir, "ID,Nome,CNPJ\n1,Acme,11222333000181\n")
	_, err := runCommand(t, importPreviewCmd)
	require.NoError(t, err)

	importStatusFormat = "xml"
	_, err = runCommand(t, importStatusCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestImportCmd_Clear(t *testing.T) {
	dir := setupImportEnv(t)
	importFile = writeSheet(t, dir, "ID,Nome,CNPJ\n1,Acme,11222333000181\n")
	_, err := runCommand(t, importPreviewCmd)
	require.NoError(t, err)

	out, err := runCommand(t, importClearCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared import")

	out, err = runCommand(t, importStatusCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "no import in progress")
}

func TestVerifyCmd_RequiresTenant(t *testing.T) {
	setupImportEnv(t)

	_, err := runCommand(t, verifyCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant is required")
}

func TestMigrateCmd_SQLite(t *testing.T) {
	setupImportEnv(t)

	_, err := runCommand(t, migrateCmd)
	require.NoError(t, err)
	_, err = os.Stat(cfg.Store.DatabaseURL)
	assert.NoError(t, err)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	setupImportEnv(t)
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
