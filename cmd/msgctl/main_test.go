package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePatch(t *testing.T) {
	p, err := parsePatch([]string{"type=ERROR", "Message=a=b"})
	require.NoError(t, err)
	require.Nil(t, p.Date)
	require.Equal(t, "ERROR", *p.Type)
	require.Equal(t, "a=b", *p.Message)

	_, err = parsePatch([]string{"type"})
	require.Error(t, err)
	_, err = parsePatch([]string{"color=red"})
	require.Error(t, err)
}
