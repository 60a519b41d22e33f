package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpsketch/privsketch/cmd/privsketch/commands"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestIngestCommand_PrintsSummary(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n3,red\n")

	cmd := commands.NewIngestCommand()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "ingested 3 events across 2 categories")
}

func TestEstimateCommand_PrintsEstimate(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n3,red\n")

	cmd := commands.NewEstimateCommand()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path, "red"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "red:")
}

func TestEstimateCommand_UnknownCategory(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n")

	cmd := commands.NewEstimateCommand()
	cmd.SetArgs([]string{path, "green"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	require.Error(t, cmd.Execute())
}

func TestCompareCommand_RendersTable(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n3,red\n")

	cmd := commands.NewCompareCommand()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "category")
	assert.Contains(t, out, "red")
	assert.Contains(t, out, "blue")
}

func TestCompareCommand_WithRealFreq(t *testing.T) {
	t.Parallel()

	path := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n3,red\n")
	freqPath := writeTestCSV(t, "category,count\nred,2\nblue,1\n")

	cmd := commands.NewCompareCommand()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path, "--real-freq", freqPath})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "mean")
	assert.Contains(t, out, "stddev")
}

func TestCompareCommand_WithUnion(t *testing.T) {
	t.Parallel()

	pathA := writeTestCSV(t, "caseid,category\n1,red\n2,blue\n")
	pathB := writeTestCSV(t, "caseid,category\n3,red\n4,blue\n")

	cmd := commands.NewCompareCommand()

	var buf bytes.Buffer

	cmd.SetOut(&buf)
	cmd.SetArgs([]string{pathA, "--union-with", pathB})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "red")
}
