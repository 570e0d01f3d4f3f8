package process

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bramadityaw/elk/runtime"
)

func TestStartCapturesExitCode(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "sh", []string{"-c", "exit 3"})
	code, err := ctx.Start()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, 3, env.LastExit())
	assert.Equal(t, "3", env.Get("?"))
	assert.False(t, ctx.Success())
}

func TestStartStreamsStdout(t *testing.T) {
	var out bytes.Buffer
	env := NewEnv()
	ctx := New(nil, env, "sh", []string{"-c", "echo hello"}, WithStdout(&out))
	code, err := ctx.Start()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", out.String())
	assert.True(t, ctx.Success())
}

func TestStartWithRedirectDeliversLines(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "sh", []string{"-c", "printf 'a\\nb\\n'"})
	pipe, err := ctx.StartWithRedirect()
	require.NoError(t, err)
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.String("a"), runtime.String("b")),
		pipe.Drain(),
	))
}

func TestStartWithRedirectMergesStderr(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "sh", []string{"-c", "echo oops >&2"})
	pipe, err := ctx.StartWithRedirect()
	require.NoError(t, err)
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.String("oops")),
		pipe.Drain(),
	))
}

func TestDisposeStderrToleratesFailure(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "sh", []string{"-c", "echo oops >&2; exit 1"}, WithDisposeStderr())
	pipe, err := ctx.StartWithRedirect()
	require.NoError(t, err)
	pipe.Drain()
	assert.True(t, ctx.Success())
}

func TestPipedValueFeedsStdin(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "cat", nil)
	ctx.SetPipedValue(runtime.String("hello"))
	pipe, err := ctx.StartWithRedirect()
	require.NoError(t, err)
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.String("hello")),
		pipe.Drain(),
	))
}

func TestPipedListFeedsStdinLineWise(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "cat", nil)
	ctx.SetPipedValue(runtime.NewList(runtime.String("a"), runtime.String("b")))
	pipe, err := ctx.StartWithRedirect()
	require.NoError(t, err)
	assert.True(t, runtime.Equal(
		runtime.NewList(runtime.String("a"), runtime.String("b")),
		pipe.Drain(),
	))
}

func TestMissingExecutableIsNotFound(t *testing.T) {
	env := NewEnv()
	ctx := New(nil, env, "definitely-not-a-real-binary-xyz", nil)
	_, err := ctx.Start()
	require.Error(t, err)
	var rerr *runtime.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, runtime.ErrNotFound, rerr.Kind())
	assert.Contains(t, rerr.Error(), "definitely-not-a-real-binary-xyz")
}
