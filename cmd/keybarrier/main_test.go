package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunCommand_Summary(t *testing.T) {
	stdout, _, err := execute(t, "run",
		"--callers", "20", "--keys", "4", "--work", "5ms", "--log-level", "error")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^lockNoSleep=\d+,lockSleep=\d+,noLockNoSleep=\d+,acquiredLocks=\d+,failed=0,interrupted=0$`, lines[0])
	assert.Regexp(t, `^end : \d+$`, lines[1])
}

func TestRunCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "run",
		"--callers", "10", "--keys", "2", "--work", "1ms", "--json", "--log-level", "error")
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.EqualValues(t, 10, rep["callers"])
	assert.NotEmpty(t, rep["id"])
}

func TestRunCommand_ConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "keybarrier.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log_level: error
workload:
  callers: 7
  keys: 3
  work: 1ms
`), 0o600))

	stdout, _, err := execute(t, "run", "-c", cfgPath, "--callers", "9", "--json")
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.EqualValues(t, 9, rep["callers"], "flags override the file")
	assert.EqualValues(t, 3, rep["keys"])
}

func TestRunCommand_InvalidInput(t *testing.T) {
	_, _, err := execute(t, "run", "--keys", "0")
	assert.ErrorContains(t, err, "keys")

	_, _, err = execute(t, "run", "--store", "reports.csv", "--work", "1ms")
	assert.ErrorContains(t, err, "unknown report store")

	_, _, err = execute(t, "run", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	for _, name := range []string{"reports.db", "reports.bolt"} {
		t.Run(name, func(t *testing.T) {
			store := filepath.Join(t.TempDir(), name)

			for i := 0; i < 2; i++ {
				_, _, err := execute(t, "run", "--callers", "5", "--keys", "2", "--work", "1ms",
					"--store", store, "--log-level", "error")
				require.NoError(t, err)
			}

			stdout, _, err := execute(t, "history", "--store", store)
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(stdout), "\n")
			require.Len(t, lines, 3)
			assert.True(t, strings.HasPrefix(lines[0], "ID"))
		})
	}
}
