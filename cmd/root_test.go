package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/wavecut/internal/presentation"
	"github.com/zjrosen/wavecut/internal/report"
	"github.com/zjrosen/wavecut/internal/testutil"
)

const listing = `| Origin Time (GMT)         | Status | cnt | Mag | T  | cnt | Lat     | Lon      | Depth | Remarks   |
| 2024-03-10 08:15:00.412   | manual | 14  | 5.2 | M  | 9   | 8.25 S  | 124.50 E | 33 km | Near Alor |
| 2024-03-08 22:01:13.000   | manual | 9   | 3.1 | MLv| 4   | 9.10 S  | 123.70 E | 10 km | Timor Sea |
| 2024-03-12 04:30:00       | manual | 7   | 4.0 | M  | 3   | 2.00 N  | 128.00 E | 40 km | Halmahera |
`

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		viper.Reset()
		cfgFile, runInput, filterInput, filterOutput, logLevel = "", "", "", "", ""
		inspectJSON, historyJSON, configForce = false, false, false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInspect_JSON(t *testing.T) {
	dir := t.TempDir()
	testutil.NewStaging().
		WithFile("IA.PAFM.mseed", testutil.NewTrace("PAFM")).
		WithGarbage("notes.txt", "hello").
		Build(t, dir)

	out, err := execute(t, "inspect", "--json",
		filepath.Join(dir, "IA.PAFM.mseed"), filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)

	var files []presentation.FileDTO
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 2)
	require.Len(t, files[0].Traces, 1)
	require.Equal(t, 3601, files[0].Traces[0].Samples)
	require.NotEmpty(t, files[1].Error)
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wavecut.yaml")

	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}

func TestFilterThenRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()

	// the download command copies a prepared day directory into staging
	archive := filepath.Join(root, "archive")
	testutil.NewStaging().
		WithFile("IA.PAFM.mseed", testutil.NewTrace("PAFM")).
		WithFile("IA.ALRB.mseed", testutil.NewTrace("ALRB")).
		Build(t, filepath.Join(archive, "2024", "070"))

	listingPath := filepath.Join(root, "catalog.txt")
	require.NoError(t, os.WriteFile(listingPath, []byte(listing), 0o644))

	outDir := filepath.Join(root, "events")
	cfgPath := filepath.Join(root, "wavecut.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
catalog:
  input: `+listingPath+`
  filtered: `+filepath.Join(root, "filtered.csv")+`
staging_dir: `+filepath.Join(root, "staging")+`
output_dir: `+outDir+`
stations: [PAFM]
fetch:
  command: sh
  args: ["-c", "cp `+archive+`/{year}/{day}/* {staging}/"]
index:
  enabled: true
`), 0o644))

	out, err := execute(t, "filter", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "Kept 2 of 3 events")

	out, err = execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "Total event input: 2")
	require.Contains(t, out, "Total succeeded  : 1")
	require.Contains(t, out, "Total failed     : 1")

	require.FileExists(t, filepath.Join(outDir, "2024", testutil.AlorFileName))
	ledger, err := os.ReadFile(report.LedgerPath(outDir))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(ledger), report.LedgerHeader+"\n"))
	require.Contains(t, string(ledger), `2024-03-08,22:01:13,3.1,-9.1,123.7,10.0,068,2024,"Timor Sea"`)

	staged, err := os.ReadDir(filepath.Join(root, "staging"))
	require.NoError(t, err)
	require.Empty(t, staged)

	out, err = execute(t, "history", "--config", cfgPath, "--json")
	require.NoError(t, err)
	var runs []presentation.RunDTO
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, 1, runs[0].Succeeded)
}
