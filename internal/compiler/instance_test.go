package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLifecycle(t *testing.T) {
	DestroyInstance()
	t.Cleanup(DestroyInstance)

	r := newFakeRenderer(false)
	inv := &fakeInvoker{failures: map[string]error{}}
	require.NoError(t, Configure(Config{Renderer: r, Invoker: inv, Logger: discardLogger(), HeaderDirs: []string{"/opt/gd/include"}}))

	c := Instance()
	require.NotNil(t, c)
	assert.Same(t, c, Instance(), "Instance must return the same compiler")
	assert.Equal(t, []string{"/opt/gd/include"}, c.HeaderDirectories())
	assert.ErrorIs(t, Configure(Config{}), ErrAlreadyInitialized)

	c.EventsCompilationNeeded(fakeGame{}, &fakeScene{id: "A"})
	DestroyInstance()

	assert.False(t, c.EventsBeingCompiled(), "teardown joins the running job")
	DestroyInstance()

	next := Instance()
	assert.NotSame(t, c, next)
}
