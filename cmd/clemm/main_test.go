package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/config"
	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/memory"
)

// writeConfig points the output dir and notes at a temp dir
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "output_files")
	path := filepath.Join(dir, "clemm.yaml")
	body := fmt.Sprintf("output_dir: %s\nnotes_path: %s\nlog:\n  level: error\n", out, filepath.Join(dir, "Captains_Log.txt"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, out
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestToolList(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := run(t, "", "tool", "--config", cfgPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "open_notes: ")
	assert.Contains(t, out, "fire_laser: ")
	assert.Contains(t, out, "ask_crew: ")
}

func TestToolRun(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	out, err := run(t, "", "tool", "--config", cfgPath, "create_file", `filename="orders.txt",`, `content="Hold position."`)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	data, err := os.ReadFile(filepath.Join(outDir, "orders.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hold position.", string(data))
}

func TestToolUnknown(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := run(t, "", "tool", "--config", cfgPath, "warp_drive")
	require.NoError(t, err)
	assert.Equal(t, "Tool 'warp_drive' not found.\n", out)
}

func TestToolNeedsName(t *testing.T) {
	_, err := run(t, "", "tool")
	assert.ErrorContains(t, err, "tool name is required")
}

func TestCrew(t *testing.T) {
	out, err := run(t, "", "crew")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "captain_raven"))
	assert.Contains(t, lines[3], "tool_crew")
	assert.Contains(t, lines[3], "150")
}

func TestCrewDump(t *testing.T) {
	out, err := run(t, "", "crew", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "key: captain_raven")
	assert.Contains(t, out, "persona: raven")
}

func TestConsole(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := run(t, "status\ncrew\nexit\n", "console", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Clemm 09 Console Online.")
	assert.Contains(t, out, "System Status: All systems nominal.")
	assert.Contains(t, out, "Available crew members: captain_raven, code_expert, tool_crew, creative_writer")
}

func TestBootChecksWarpKey(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	empty := filepath.Join(t.TempDir(), ".env")

	t.Setenv(config.WarpKeyEnv, "short")
	out, err := run(t, "exit\n", "boot", "--config", cfgPath, "--env-file", empty)
	assert.ErrorIs(t, err, config.ErrWarpKeyInvalid)
	assert.Contains(t, out, "System shutdown initiated.")

	t.Setenv(config.WarpKeyEnv, "engage-warp-9")
	out, err = run(t, "exit\n", "boot", "--config", cfgPath, "--env-file", empty)
	require.NoError(t, err)
	assert.Contains(t, out, "Core systems online.")
	assert.Contains(t, out, "Current crew: captain_raven")
}

func TestBackendFlagIsValidated(t *testing.T) {
	_, err := run(t, "", "crew", "--backend", "warp")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestBackendFlagDropsServerURL(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv("LLAMACPP_SERVER_URL", "http://127.0.0.1:8081")
	t.Setenv("CLEMM_MODEL", "llama3")
	t.Setenv("OLLAMA_HOST", "")

	opts := &rootOptions{configPath: cfgPath, backend: config.BackendOllama}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.BackendOllama, cfg.Backend.Type)
	assert.Equal(t, "http://localhost:11434", cfg.Backend.Endpoint())
}

func TestTranscripts(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "transcripts.db")
	cfgPath := filepath.Join(dir, "clemm.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("memory:\n  type: sqlite\n  sqlite_path: %s\n", dbPath)), 0o600))

	store, err := memory.OpenSQLite(dbPath)
	require.NoError(t, err)
	ctx := memory.WithConversationID(context.Background(), "voyage-1")
	for _, m := range []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "Status?", Metadata: map[string]interface{}{"crew": "captain_raven"}},
		{Role: interfaces.RoleAssistant, Content: "Nominal.", Metadata: map[string]interface{}{"crew": "captain_raven"}},
	} {
		require.NoError(t, store.AddMessage(ctx, m))
	}
	require.NoError(t, store.Close())

	out, err := run(t, "", "transcripts", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "voyage-1\n", out)

	out, err = run(t, "", "transcripts", "--config", cfgPath, "voyage-1", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "[captain_raven] assistant: Nominal.\n", out)
}
