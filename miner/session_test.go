//go:build test

package miner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionHandleLifecycle(t *testing.T) {
	h := NewSessionHandle()
	require.False(t, h.Running())

	seq := h.Begin()
	require.True(t, h.Running())
	require.True(t, h.ActiveFor(seq))

	h.StopRun()
	require.False(t, h.Running())
	require.False(t, h.ActiveFor(seq))
}

func TestSessionHandle_SupersededSequence(t *testing.T) {
	h := NewSessionHandle()

	first := h.Begin()
	h.StopRun()
	second := h.Begin()

	require.NotEqual(t, first, second)
	require.False(t, h.ActiveFor(first), "loops of a superseded session must see themselves inactive")
	require.True(t, h.ActiveFor(second))
}
