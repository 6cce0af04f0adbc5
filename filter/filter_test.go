package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcludeSession(t *testing.T) {
	prog, err := Compile(ExcludeSession("sess-1"))
	require.NoError(t, err)
	env := Env{
		Room:   Room{Id: "general", Name: "General"},
		Sender: User{SessionId: "sess-1", UserId: "alice", Name: "alice"},
		Name:   "typing",
	}
	env.Target = User{SessionId: "sess-1", UserId: "alice", Name: "alice"}
	assert.False(t, Run(prog, env), "sender must be excluded")
	env.Target = User{SessionId: "sess-2", UserId: "bob", Name: "bob"}
	assert.True(t, Run(prog, env))
}

func TestCompileCached(t *testing.T) {
	expression := `Target.UserId == "bob"`
	prog1, err := Compile(expression)
	require.NoError(t, err)
	prog2, err := Compile(expression)
	require.NoError(t, err)
	assert.Same(t, prog1, prog2)
}

func TestCompileError(t *testing.T) {
	_, err := Compile("Target.UserId ==")
	assert.Error(t, err)
}

func TestRunNilProgram(t *testing.T) {
	assert.True(t, Run(nil, Env{}))
}

func TestRunNonBoolean(t *testing.T) {
	prog, err := Compile("Target.UserId")
	require.NoError(t, err)
	assert.False(t, Run(prog, Env{Target: User{UserId: "bob"}}))
}
