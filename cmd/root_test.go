package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portverify/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"add", "run", "list", "export", "summarize", "clear", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "portverify", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"add", "file", ""},
		{"add", "ftp", ""},
		{"add", "notion-db", ""},
		{"run", "offline", "false"},
		{"run", "batch-size", "0"},
		{"list", "status", ""},
		{"export", "format", "csv"},
		{"export", "output", ""},
		{"summarize", "offline", "false"},
		{"clear", "yes", "false"},
		{"serve", "port", "0"},
		{"serve", "offline", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			c, _, err := rootCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := c.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "%s should have --%s", tt.cmd, tt.flag)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestNameSources_Args(t *testing.T) {
	names, err := nameSources{Args: []string{"Port of Shanghai", "Hamburg; Rotterdam"}}.collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Port of Shanghai", "Hamburg", "Rotterdam"}, names)
}

func TestNameSources_Stdin(t *testing.T) {
	src := nameSources{
		Args:  []string{"-"},
		Stdin: strings.NewReader("Singapore\n\nNarita Airport\n"),
	}
	names, err := src.collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Singapore", "Narita Airport"}, names)
}

func TestNameSources_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte("Busan\nAntwerp\n"), 0o600))

	names, err := nameSources{Args: []string{"Valencia"}, File: path}.collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Valencia", "Busan", "Antwerp"}, names)
}

func TestNameSources_MissingFile(t *testing.T) {
	_, err := nameSources{File: filepath.Join(t.TempDir(), "missing.txt")}.collect(context.Background())
	assert.Error(t, err)
}

func TestNameSources_Empty(t *testing.T) {
	names, err := nameSources{}.collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFormatRecords(t *testing.T) {
	var buf bytes.Buffer
	formatRecords(&buf, []model.Record{
		{
			OriginalName:  "Port of Shanghai",
			Status:        model.StatusCompleted,
			Code:          "CNSHA",
			LocalizedName: "上海港",
			CountryName:   "中国",
			Sources:       []model.Source{{URI: "https://a"}, {URI: "https://b"}},
		},
		{OriginalName: "Atlantis", Status: model.StatusPending},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "CNSHA")
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[2], "Atlantis")
	assert.Contains(t, lines[2], "-")
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", dash(""))
	assert.Equal(t, "CNSHA", dash("CNSHA"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "上海港上海港上...", truncate("上海港上海港上海港上海港", 10))
}

func TestPrintCounts(t *testing.T) {
	var buf bytes.Buffer
	printCounts(&buf, map[model.Status]int{
		model.StatusCompleted: 3,
		model.StatusFailed:    1,
	})
	assert.Equal(t, "completed: 3  failed: 1  in_flight: 0  pending: 0\n", buf.String())
}

// execute runs the root command with fresh flag values and captured output.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	addFile, addFTP, addNotionDB = "", "", ""
	runOffline, runBatchSize = false, 0
	listStatus = ""
	exportFormat, exportOutput = "csv", ""
	summarizeOffline = false
	clearYes = false

	var stdout, stderr bytes.Buffer
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PORTVERIFY_STORE_DRIVER", "sqlite")
	t.Setenv("PORTVERIFY_STORE_DATABASE_URL", filepath.Join(dir, "ledger.db"))
	t.Setenv("PORTVERIFY_LOG_LEVEL", "error")
	t.Setenv("PORTVERIFY_ORACLE_PROVIDER", "gemini")
	t.Setenv("PORTVERIFY_ORACLE_KEY", "")
	return dir
}

func TestCLI_OfflineFlow(t *testing.T) {
	dir := setupCLIEnv(t)

	out, _, err := execute(t, nil, "add", "Port of Shanghai", "Narita Airport")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued 2 names")

	out, _, err = execute(t, strings.NewReader("Rotterdam\n"), "add", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued 1 names (3 records in ledger)")

	out, _, err = execute(t, nil, "list", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Port of Shanghai")
	assert.Contains(t, out, "Rotterdam")

	out, _, err = execute(t, nil, "run", "--offline", "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "completed: 3  failed: 0  in_flight: 0  pending: 0")

	out, _, err = execute(t, nil, "export", "--output", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\ufefforiginalName,code,localizedName,countryName,remarks"))
	assert.Contains(t, out, "PORTOFSHANGHAI")

	xlsxPath := filepath.Join(dir, "out.xlsx")
	out, _, err = execute(t, nil, "export", "--format", "xlsx", "--output", xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 records")
	assert.FileExists(t, xlsxPath)

	out, _, err = execute(t, nil, "summarize", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "3 verified locations")

	_, _, err = execute(t, nil, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, _, err = execute(t, nil, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger cleared.")

	_, stderr, err := execute(t, nil, "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "No records found.")
}

func TestCLI_AddRequiresNames(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, nil, "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no names given")
}

func TestCLI_RunRequiresKeyWhenOnline(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, nil, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle.key is required")
}

func TestCLI_ListRejectsUnknownStatus(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, nil, "list", "--status", "done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestCLI_ExportRejectsUnknownFormat(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := execute(t, nil, "export", "--format", "pdf")
	assert.Error(t, err)
}
