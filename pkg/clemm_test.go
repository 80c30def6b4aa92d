package clemm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/agent"
	"github.com/run-bigpig/clemm/pkg/config"
	"github.com/run-bigpig/clemm/pkg/interfaces"
	"github.com/run-bigpig/clemm/pkg/llm/llamacpp"
	"github.com/run-bigpig/clemm/pkg/llm/ollama"
	"github.com/run-bigpig/clemm/pkg/llm/openai"
	"github.com/run-bigpig/clemm/pkg/logging"
	"github.com/run-bigpig/clemm/pkg/memory"
	"github.com/run-bigpig/clemm/pkg/tools/shipboard"
	"github.com/run-bigpig/clemm/pkg/tracing"
)

type cannedLLM struct{ reply string }

func (c cannedLLM) Chat(context.Context, []interfaces.Message, *interfaces.GenerateParams) (string, error) {
	return c.reply, nil
}

func (cannedLLM) Name() string { return "canned" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "output_files")
	cfg.NotesPath = filepath.Join(dir, "Captains_Log.txt")
	return cfg
}

func noOpener() shipboard.Opener {
	return shipboard.OpenerFunc(func(context.Context, string) error { return nil })
}

func TestBootDefaultCrew(t *testing.T) {
	ctx := context.Background()
	ship, err := Boot(ctx, testConfig(t),
		WithLLM(cannedLLM{reply: "Aye, Captain."}),
		WithLogger(logging.NewNop()),
		WithOpener(noOpener()),
	)
	require.NoError(t, err)
	defer ship.Close(ctx)

	assert.Equal(t, []string{"captain_raven", "code_expert", "tool_crew", "creative_writer"}, ship.Roster.Keys())
	assert.Equal(t, []string{"open_notes", "create_file", "fire_laser", "launch_missile", "status_log", agent.DelegationToolName}, ship.Registry.ListNames())

	raven := ship.Roster.Default()
	assert.Contains(t, raven.SystemPrompt(), "ask_crew")

	reply, err := raven.Chat(ctx, "Report.")
	require.NoError(t, err)
	assert.Equal(t, "Aye, Captain.", reply)

	msgs, err := ship.Memory.GetMessages(memoryContext(raven))
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestBootDefaultCrewOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crew.Default = "code_expert"
	ship, err := Boot(context.Background(), cfg, WithLLM(cannedLLM{}), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	defer ship.Close(context.Background())
	assert.Equal(t, "code_expert", ship.Roster.Default().Key())

	cfg.Crew.Default = "navigator"
	_, err = Boot(context.Background(), cfg, WithLLM(cannedLLM{}), WithLogger(logging.NewNop()))
	assert.ErrorIs(t, err, agent.ErrUnknownCrew)
}

func TestBootSQLiteMemory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Memory.Type = config.MemorySQLite
	cfg.Memory.SQLitePath = filepath.Join(t.TempDir(), "transcripts.db")

	ship, err := Boot(ctx, cfg, WithLLM(cannedLLM{reply: "Logged."}), WithLogger(logging.NewNop()))
	require.NoError(t, err)

	raven := ship.Roster.Default()
	_, err = raven.Chat(ctx, "Log this.")
	require.NoError(t, err)
	msgs, err := ship.Memory.GetMessages(memoryContext(raven))
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	require.NoError(t, ship.Close(ctx))
	_, err = os.Stat(cfg.Memory.SQLitePath)
	assert.NoError(t, err)
}

func TestBootBackends(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*config.Config)
		check func(*testing.T, interfaces.LLM)
	}{
		{
			name:  "server",
			setup: func(*config.Config) {},
			check: func(t *testing.T, llm interfaces.LLM) {
				assert.IsType(t, &llamacpp.Client{}, llm)
			},
		},
		{
			name: "openai",
			setup: func(c *config.Config) {
				c.Backend.Type = config.BackendOpenAI
				c.Backend.Model = "raven"
				c.Retry.Enabled = true
			},
			check: func(t *testing.T, llm interfaces.LLM) {
				client, ok := llm.(*openai.OpenAIClient)
				require.True(t, ok)
				assert.Equal(t, "raven", client.Model)
			},
		},
		{
			name: "ollama",
			setup: func(c *config.Config) {
				c.Backend.Type = config.BackendOllama
				c.Backend.Model = "raven"
			},
			check: func(t *testing.T, llm interfaces.LLM) {
				assert.IsType(t, &ollama.Client{}, llm)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.setup(cfg)
			ship, err := Boot(context.Background(), cfg, WithLogger(logging.NewNop()))
			require.NoError(t, err)
			defer ship.Close(context.Background())
			tt.check(t, ship.LLM)
		})
	}
}

func TestBootLangfuseTracing(t *testing.T) {
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"successes":[],"errors":[]}`))
	}))
	defer collector.Close()
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	cfg := testConfig(t)
	cfg.Tracing.Enabled = true
	cfg.Tracing.Type = config.TracingLangfuse
	cfg.Tracing.Langfuse = config.LangfuseConfig{
		Host:      collector.URL,
		PublicKey: "pk-lf-test",
		SecretKey: "sk-lf-test",
	}

	ship, err := Boot(context.Background(), cfg,
		WithLLM(cannedLLM{reply: "Aye."}),
		WithLogger(logging.NewNop()),
		WithOpener(noOpener()),
	)
	require.NoError(t, err)
	assert.IsType(t, &tracing.LLMLangfuseMiddleware{}, ship.LLM)
	assert.Equal(t, collector.URL, os.Getenv("LANGFUSE_HOST"))
	assert.NoError(t, ship.Close(context.Background()))
}

func TestBootLaunchNeedsPaths(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendLaunch
	_, err := Boot(context.Background(), cfg, WithLogger(logging.NewNop()))
	assert.ErrorContains(t, err, "RAVEN_GGUF_MODEL_PATH")
}

func TestBootFailsOnUnreachableMCPServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCPServers = []config.MCPServerConfig{{Name: "galley", Command: "clemm-no-such-mcp-server"}}
	_, err := Boot(context.Background(), cfg, WithLLM(cannedLLM{}), WithLogger(logging.NewNop()))
	assert.ErrorContains(t, err, "mcp server galley")
}

func TestPromote(t *testing.T) {
	crew := agent.DefaultCrewConfigs()
	out, err := promote(crew, "tool_crew")
	require.NoError(t, err)
	keys := make([]string, len(out))
	for i, c := range out {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"tool_crew", "captain_raven", "code_expert", "creative_writer"}, keys)
	assert.Equal(t, "captain_raven", crew[0].Key)
}

func memoryContext(a *agent.Agent) context.Context {
	return memory.WithConversationID(context.Background(), a.ConversationID())
}
