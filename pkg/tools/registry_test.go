package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/toolcall"
)

type crewMember string

func (c crewMember) Name() string { return string(c) }

func echoSpec() Spec {
	return Spec{
		Name:        "echo",
		Description: "Echoes its input.",
		Parameters:  []string{"text", "times"},
		Func: func(_ context.Context, _ AgentContext, args Args) (string, error) {
			return args.Get("text", "nothing"), nil
		},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(echoSpec()))
	require.NoError(t, r.Register(Spec{
		Name:        "open_notes",
		Description: "Opens the Captains_Log.txt file for viewing.",
		Func: func(context.Context, AgentContext, Args) (string, error) {
			return "opened", nil
		},
	}))
	require.NoError(t, r.Register(Spec{
		Name:                 "whoami",
		Description:          "Names the calling crew member.",
		RequiresAgentContext: true,
		Func: func(_ context.Context, agent AgentContext, _ Args) (string, error) {
			return agent.Name(), nil
		},
	}))
	require.NoError(t, r.Register(Spec{
		Name:        "explode",
		Description: "Always panics.",
		Func: func(context.Context, AgentContext, Args) (string, error) {
			panic("reactor breach")
		},
	}))
	require.NoError(t, r.Register(Spec{
		Name:        "fail",
		Description: "Always fails.",
		Func: func(context.Context, AgentContext, Args) (string, error) {
			return "", errors.New("disk full")
		},
	}))
	return r
}

func TestDescribe(t *testing.T) {
	r := newTestRegistry(t)

	line, ok := r.Describe("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo: Echoes its input. Parameters: text, times", line)

	line, ok = r.Describe("open_notes")
	assert.True(t, ok)
	assert.Equal(t, "open_notes: Opens the Captains_Log.txt file for viewing. Parameters: None", line)

	_, ok = r.Describe("missing")
	assert.False(t, ok)
}

func TestListNamesKeepsRegistrationOrder(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{"echo", "open_notes", "whoami", "explode", "fail"}, r.ListNames())
	assert.Len(t, r.Descriptions(), 5)
}

func TestRegisterRejectsDuplicatesAndIncompleteSpecs(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Register(echoSpec())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.Error(t, r.Register(Spec{Name: "", Func: echoSpec().Func}))
	assert.Error(t, r.Register(Spec{Name: "nofunc"}))
}

func TestSpecsAreCopied(t *testing.T) {
	params := []string{"text"}
	r := NewRegistry()
	require.NoError(t, r.Register(Spec{Name: "t", Parameters: params, Func: echoSpec().Func}))

	params[0] = "mutated"
	spec, _ := r.Get("t")
	assert.Equal(t, []string{"text"}, spec.Parameters)

	spec.Parameters[0] = "again"
	spec, _ = r.Get("t")
	assert.Equal(t, []string{"text"}, spec.Parameters)
}

func TestInvoke(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		tool  string
		agent AgentContext
		args  toolcall.Arguments
		want  string
	}{
		{
			name: "success",
			tool: "echo",
			args: toolcall.Arguments{{Key: "text", Value: "hello"}},
			want: "hello",
		},
		{
			name: "defaults apply for missing parameters",
			tool: "echo",
			want: "nothing",
		},
		{
			name: "unregistered name",
			tool: "warp_jump",
			want: "Tool 'warp_jump' not found.",
		},
		{
			name: "lookup is case sensitive",
			tool: "ECHO",
			want: "Tool 'ECHO' not found.",
		},
		{
			name: "crew dependent without crew",
			tool: "whoami",
			want: "Error: This tool requires a crew instance.",
		},
		{
			name:  "crew dependent with crew",
			tool:  "whoami",
			agent: crewMember("Raven"),
			want:  "Raven",
		},
		{
			name: "panic is recovered",
			tool: "explode",
			want: "Error executing tool 'explode': reactor breach",
		},
		{
			name: "error is converted",
			tool: "fail",
			want: "Error executing tool 'fail': disk full",
		},
		{
			name: "unknown argument is reported",
			tool: "echo",
			args: toolcall.Arguments{{Key: "txt", Value: "typo"}},
			want: "Error executing tool 'echo': unknown argument(s) txt (accepted: text, times)",
		},
		{
			name: "arguments to a parameterless tool",
			tool: "open_notes",
			args: toolcall.Arguments{{Key: "path", Value: "x"}},
			want: "Error executing tool 'open_notes': unknown argument(s) path (accepted: none)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			assert.NotPanics(t, func() {
				got = r.Invoke(ctx, tt.tool, tt.agent, tt.args)
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallReturnsTypedErrors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Call(ctx, "nope", nil, nil)
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "nope", invErr.Tool)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Contains(t, err.Error(), "nope")

	_, err = r.Call(ctx, "echo", nil, toolcall.Arguments{{Key: "volume", Value: "11"}})
	assert.ErrorIs(t, err, ErrUnknownArgument)

	_, err = r.Call(ctx, "whoami", nil, nil)
	assert.ErrorIs(t, err, ErrAgentContextRequired)

	out, err := r.Call(ctx, "echo", nil, toolcall.Arguments{{Key: "text", Value: "ok"}})
	assert.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestValidate(t *testing.T) {
	r := newTestRegistry(t)

	assert.NoError(t, r.Validate("echo", toolcall.Arguments{{Key: "times", Value: "2"}}))
	assert.ErrorIs(t, r.Validate("echo", toolcall.Arguments{{Key: "x", Value: "2"}}), ErrUnknownArgument)
	assert.ErrorIs(t, r.Validate("ghost", nil), ErrToolNotFound)
}

func TestArgsGet(t *testing.T) {
	args := Args{"target": "", "power_level": "9"}
	assert.Equal(t, "", args.Get("target", "unknown target"))
	assert.Equal(t, "9", args.Get("power_level", "5"))
	assert.Equal(t, "standard", args.Get("warhead_type", "standard"))
}
