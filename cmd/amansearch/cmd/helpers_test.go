package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv isolates HOME and the user config, and writes a --config file
// pointing the data directory and log file into t.TempDir().
type testEnv struct {
	home       string
	dataDir    string
	configPath string
	logPath    string
}

func newTestEnv(t *testing.T, extraYAML string) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	env := &testEnv{
		home:       home,
		dataDir:    filepath.Join(home, "data"),
		configPath: filepath.Join(home, "amansearch.yaml"),
		logPath:    filepath.Join(home, "logs", "amansearch.log"),
	}
	content := fmt.Sprintf("data_dir: %s\nlogging:\n  file_path: %s\n%s", env.dataDir, env.logPath, extraYAML)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

// run executes the root command with --config set, returning stdout.
func (e *testEnv) run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.Execute()
	return stdout.String(), err
}

const testDocuments = `{"id":"1","title":"Passport renewal","description":"Renew your passport by mail","path":"https://travel.example.gov/passports/renew","tags":["travel"],"changed":"2026-09-01T00:00:00Z"}
{"id":"2","title":"Tax forms","description":"Download federal tax forms","path":"https://irs.example.gov/forms","tags":"finance,forms","changed":"2026-08-01T00:00:00Z"}
{"id":"3","title":"Passport photos","description":"Photo requirements for a passport","path":"https://travel.example.gov/passports/photos","changed":"2026-07-01T00:00:00Z"}
`

func (e *testEnv) writeDocuments(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.home, "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(testDocuments), 0o644))
	return path
}
