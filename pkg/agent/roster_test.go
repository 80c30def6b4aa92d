package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/clemm/pkg/toolcall"
	"github.com/run-bigpig/clemm/pkg/tools"
)

func newDefaultRoster(t *testing.T, llm *scriptedLLM) (*Roster, *tools.Registry) {
	t.Helper()
	registry, _ := newShipRegistry(t)
	roster, err := NewRoster(DefaultCrewConfigs(), WithLLM(llm), WithTools(registry))
	require.NoError(t, err)
	return roster, registry
}

func TestDefaultRoster(t *testing.T) {
	roster, registry := newDefaultRoster(t, newScript())

	assert.Equal(t, []string{"captain_raven", "code_expert", "tool_crew", "creative_writer"}, roster.Keys())
	assert.Equal(t, "captain_raven", roster.Default().Key())
	assert.Equal(t, "Raven", roster.Default().Name())

	toolCrew, ok := roster.Get("tool_crew")
	require.True(t, ok)
	params := toolCrew.Params()
	assert.Equal(t, 150, params.MaxTokens)
	assert.Equal(t, 0.0, params.Temperature)
	assert.Equal(t, 50, params.TopK)
	assert.Equal(t, 0.95, params.TopP)
	assert.Equal(t, 1.15, params.RepeatPenalty)

	for _, line := range registry.Descriptions() {
		assert.Contains(t, toolCrew.SystemPrompt(), line)
	}
	assert.Equal(t, toolCrew.SystemPrompt(), toolCrew.History()[0].Content)

	for _, key := range roster.Keys() {
		member, _ := roster.Get(key)
		assert.Same(t, roster, member.Roster())
	}
}

func TestRosterLookupAlias(t *testing.T) {
	roster, _ := newDefaultRoster(t, newScript())

	byName, err := roster.Lookup("tool_crew")
	require.NoError(t, err)
	for _, alias := range []string{"crew", "Crew", "CREW"} {
		byAlias, err := roster.Lookup(alias)
		require.NoError(t, err)
		assert.Same(t, byName, byAlias)
	}

	_, err = roster.Lookup("doctor")
	assert.ErrorIs(t, err, ErrUnknownCrew)
	assert.EqualError(t, err, "unknown crew member 'doctor' (available: captain_raven, code_expert, creative_writer, tool_crew)")
}

func TestNewRosterRejectsBadConfigs(t *testing.T) {
	_, err := NewRoster(nil, WithLLM(newScript()))
	assert.Error(t, err)

	_, err = NewRoster(CrewConfigs{{Key: "a", SystemPrompt: "x"}, {Key: "a", SystemPrompt: "y"}}, WithLLM(newScript()))
	assert.ErrorContains(t, err, "defined twice")

	_, err = NewRoster(CrewConfigs{{Key: "a", Persona: "janitor"}}, WithLLM(newScript()))
	assert.ErrorContains(t, err, "unknown persona")
}

func TestAskCrewAliasResolvesToToolCrew(t *testing.T) {
	for _, name := range []string{"crew", "tool_crew"} {
		t.Run(name, func(t *testing.T) {
			llm := newScript("run_tool open_notes")
			roster, registry := newDefaultRoster(t, llm)

			out := registry.Invoke(context.Background(), DelegationToolName, roster.Default(),
				toolcall.Arguments{{Key: "crew_member", Value: name}, {Key: "question", Value: "open the log"}})
			assert.Equal(t, "TOOL RESULT: Successfully opened Captains_Log.txt.", out)

			toolCrew, _ := roster.Get("tool_crew")
			require.Len(t, llm.calls, 1)
			assert.Equal(t, toolCrew.SystemPrompt(), llm.calls[0][0].Content)
			assert.Equal(t, 150, llm.params[0].MaxTokens)
			assert.Len(t, toolCrew.History(), 3)
		})
	}
}

func TestAskCrewFromAgentTurn(t *testing.T) {
	llm := newScript(
		`run_tool ask_crew crew_member="creative_writer", question="Describe Europa.", context="We arrive tomorrow."`,
		"Europa glitters under Jupiter.",
	)
	roster, _ := newDefaultRoster(t, llm)
	raven := roster.Default()

	out, err := raven.Chat(context.Background(), "Ask the writer about Europa.")
	require.NoError(t, err)
	assert.Equal(t, "TOOL RESULT: Europa glitters under Jupiter.", out)

	require.Len(t, llm.calls, 2)
	delegated := llm.calls[1]
	assert.Equal(t, "We arrive tomorrow.\n\nDescribe Europa.", delegated[len(delegated)-1].Content)

	writer, _ := roster.Get("creative_writer")
	assert.Equal(t, "Europa glitters under Jupiter.", writer.History()[2].Content)
	assert.Equal(t, "Tool 'ask_crew' executed successfully. Result: Europa glitters under Jupiter.", raven.History()[2].Content)
}

func TestAskCrewFailures(t *testing.T) {
	roster, registry := newDefaultRoster(t, &scriptedLLM{steps: []step{{err: errors.New("model offline")}}})
	raven := roster.Default()
	ctx := context.Background()

	unknown := registry.Invoke(ctx, DelegationToolName, raven, toolcall.Arguments{{Key: "crew_member", Value: "doctor"}})
	assert.Equal(t, "Error executing tool 'ask_crew': unknown crew member 'doctor' (available: captain_raven, code_expert, creative_writer, tool_crew)", unknown)

	loner := newTestAgent(t, newScript(), registry)
	noRoster := registry.Invoke(ctx, DelegationToolName, loner, toolcall.Arguments{{Key: "crew_member", Value: "crew"}})
	assert.Equal(t, "Error executing tool 'ask_crew': no crew roster available for delegation", noRoster)

	noCaller := registry.Invoke(ctx, DelegationToolName, nil, nil)
	assert.Equal(t, "Error: This tool requires a crew instance.", noCaller)

	failed := registry.Invoke(ctx, DelegationToolName, raven, toolcall.Arguments{{Key: "crew_member", Value: "code_expert"}, {Key: "question", Value: "hi"}})
	assert.True(t, strings.HasPrefix(failed, "Error executing tool 'ask_crew': crew member 'code_expert' could not answer:"), failed)
	assert.Contains(t, failed, "model offline")

	expert, _ := roster.Get("code_expert")
	assert.Len(t, expert.History(), 1, "failed delegated turn is rolled back")
}

func TestAskCrewDepthLimit(t *testing.T) {
	llm := &scriptedLLM{
		steps:  []step{{reply: "run_tool ask_crew crew_member=captain_raven, question=again"}},
		repeat: true,
	}
	roster, _ := newDefaultRoster(t, llm)

	out, err := roster.Default().Chat(context.Background(), "start")
	require.NoError(t, err)

	assert.Equal(t, MaxDelegationDepth+1, llm.callCount())
	assert.Contains(t, out, ErrDelegationDepth.Error())
}
