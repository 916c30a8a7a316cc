package openai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"cueso/internal/model"
)

func TestEncodeMessages_SystemPromptPrepended(t *testing.T) {
	out := encodeMessages([]model.Message{{Role: model.RoleUser, Content: "hi"}}, "be concise")
	require.Len(t, out, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	require.Equal(t, "be concise", out[0].Content)
	require.Equal(t, openai.ChatMessageRoleUser, out[1].Role)
}

func TestEncodeMessages_AssistantToolCallsCarried(t *testing.T) {
	msgs := []model.Message{
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{
				{ID: "c1", Name: "send_key", Arguments: []byte(`{"key":"Home"}`)},
			},
		},
		{Role: model.RoleTool, ToolCallID: "c1", Content: `{"success":true}`},
	}
	out := encodeMessages(msgs, "")
	require.Len(t, out, 2)
	require.Len(t, out[0].ToolCalls, 1)
	require.Equal(t, "send_key", out[0].ToolCalls[0].Function.Name)
	require.Equal(t, `{"key":"Home"}`, out[0].ToolCalls[0].Function.Arguments)
	require.Equal(t, openai.ChatMessageRoleTool, out[1].Role)
	require.Equal(t, "c1", out[1].ToolCallID)
}

func TestEncodeTools_MarshalsSchema(t *testing.T) {
	defs := []model.ToolDefinition{
		{Name: "send_key", Description: "press a key", InputSchema: map[string]any{"type": "object"}},
	}
	out, err := encodeTools(defs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "send_key", out[0].Function.Name)
	require.Equal(t, "press a key", out[0].Function.Description)
}

func TestEncodeTools_EmptyYieldsNil(t *testing.T) {
	out, err := encodeTools(nil)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(openai.NewClient("key"), Options{})
	require.Error(t, err)
}

func TestNew_RequiresChatClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "gpt-4o"})
	require.Error(t, err)
}
