package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dejo1307/pydiag/internal/config"
	"github.com/dejo1307/pydiag/internal/engine"
	"github.com/dejo1307/pydiag/internal/sessions"
)

// setup installs test globals and returns a command that captures output.
func setup(t *testing.T, stdin string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.Default()
	cfg.Sessions.DBPath = filepath.Join(t.TempDir(), "sessions.db")

	analyzeFormat, analyzeSave, analyzeUser, analyzeUserType, analyzeTrace = "", false, "local", "anonymous", false
	factsCategory, factsPredicate, factsJSONL, factsOffset, factsLimit = "", "", false, 0, 0
	historyUser, historyLimit = "local", 0

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	return cmd, &out
}

func TestAnalyzeCmd_JSONFromStdin(t *testing.T) {
	cmd, out := setup(t, "if x > 5\n    pass\n")
	analyzeFormat = "json"

	require.NoError(t, runAnalyze(cmd, nil))

	var o engine.Outcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &o))
	require.NotEmpty(t, o.Findings)
	assert.Equal(t, "r1", o.Findings[0].RuleID)
}

func TestAnalyzeCmd_File(t *testing.T) {
	cmd, out := setup(t, "")
	path := filepath.Join(t.TempDir(), "prog.py")
	require.NoError(t, os.WriteFile(path, []byte("MyVariable = 42\n"), 0o644))
	analyzeFormat = "markdown"

	require.NoError(t, runAnalyze(cmd, []string{path}))
	assert.Contains(t, out.String(), "my_variable")
}

func TestAnalyzeCmd_MissingFile(t *testing.T) {
	cmd, _ := setup(t, "")
	err := runAnalyze(cmd, []string{filepath.Join(t.TempDir(), "absent.py")})
	assert.ErrorContains(t, err, "reading")
}

func TestAnalyzeCmd_SaveThenHistory(t *testing.T) {
	cmd, out := setup(t, "except:\n    pass\n")
	analyzeFormat = "json"
	analyzeSave = true
	analyzeUser = "u1"
	require.NoError(t, runAnalyze(cmd, []string{"-"}))

	out.Reset()
	historyUser = "u1"
	require.NoError(t, runSessions(cmd, nil))
	var recent []sessions.Session
	require.NoError(t, json.Unmarshal(out.Bytes(), &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, "except:\n    pass\n", recent[0].Code)

	out.Reset()
	require.NoError(t, runStats(cmd, nil))
	var d sessions.Dashboard
	require.NoError(t, json.Unmarshal(out.Bytes(), &d))
	assert.Equal(t, 1, d.TotalSessions)
	assert.Equal(t, 45, d.TotalRules)
	assert.Equal(t, 48, d.TotalFacts)
	assert.Positive(t, d.ErrorCategories)
}

func TestSessionsCmd_Disabled(t *testing.T) {
	cmd, _ := setup(t, "")
	cfg.Sessions.DBPath = ""
	assert.ErrorContains(t, runSessions(cmd, nil), "disabled")
}

func TestRulesCmd(t *testing.T) {
	cmd, out := setup(t, "")
	require.NoError(t, runRules(cmd, []string{"bare"}))
	assert.Contains(t, out.String(), "r39")
	assert.Contains(t, out.String(), "1 of 45 rules")
}

func TestFactsCmd(t *testing.T) {
	cmd, out := setup(t, "")
	factsCategory = "priority"
	require.NoError(t, runFacts(cmd, nil))
	assert.Contains(t, out.String(), "5 of 5 matching facts")

	out.Reset()
	factsJSONL = true
	require.NoError(t, runFacts(cmd, nil))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 5)

	factsCategory = "nope"
	assert.Error(t, runFacts(cmd, nil))
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}
