package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"cueso/internal/model"
)

func TestErrorf_FormatsMessage(t *testing.T) {
	err := Errorf("missing %s", "channel_id")
	require.EqualError(t, err, "missing channel_id")
}

func TestWrap_ChainsCauseAndUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("decode failed", cause)
	require.EqualError(t, err, "decode failed: boom")
	require.ErrorIs(t, err, cause)
}

func TestErrorResult_SetsErrorTrue(t *testing.T) {
	call := model.ToolCall{ID: "c1"}
	result := ErrorResult(call, Errorf("bad input"))
	require.True(t, result.Error)
	require.Equal(t, "c1", result.ToolCallID)
	require.Equal(t, "bad input", result.Content)
}

func TestSuccessResult_SetsErrorFalse(t *testing.T) {
	call := model.ToolCall{ID: "c1"}
	result := SuccessResult(call, `{"ok":true}`)
	require.False(t, result.Error)
	require.Equal(t, `{"ok":true}`, result.Content)
}

func TestNilErrorString(t *testing.T) {
	var err *Error
	require.Equal(t, "", err.Error())
	require.Nil(t, err.Unwrap())
}
