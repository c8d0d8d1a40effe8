package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/domain"
)

func TestParsePathAccepts(t *testing.T) {
	cases := []struct {
		raw  string
		segs int
	}{
		{"/workflow", 0},
		{"/workflow/users", 1},
		{"/workflow/users/active", 2},
		{"/workflow/users[0]", 2},
		{"/workflow/users[12].name", 3},
		{"/workflow/a-b_c9", 1},
		{"/workflow/top.id", 2},
	}
	for _, tc := range cases {
		p, err := ParsePath(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Len(t, p.Segs, tc.segs, tc.raw)
		assert.Equal(t, tc.raw, p.String())
	}
}

func TestParsePathRejects(t *testing.T) {
	cases := []string{
		"",
		"/",
		"/data/users",
		"workflow/users",
		"/workflowx/users",
		"/workflow//users",
		"/workflow/users[]",
		"/workflow/users[1",
		"/workflow/users[a]",
		"/workflow/.",
		"/workflow/users x",
	}
	for _, raw := range cases {
		_, err := ParsePath(raw)
		require.Error(t, err, raw)
		derr := domain.AsError(err)
		assert.Equal(t, domain.TypeDataError, derr.Type, raw)
	}
}

func TestIsPath(t *testing.T) {
	assert.True(t, IsPath("/workflow/users"))
	assert.True(t, IsPath("/workflow/users[3].name"))
	assert.False(t, IsPath("/workflow/users["))
	assert.False(t, IsPath("https://example.com/workflow"))
	assert.False(t, IsPath("users"))
}

func TestHasPrefix(t *testing.T) {
	users := mustPath(t, "/workflow/users")
	first := mustPath(t, "/workflow/users[0]")
	name := mustPath(t, "/workflow/users[0].name")
	other := mustPath(t, "/workflow/orders")

	assert.True(t, name.HasPrefix(users))
	assert.True(t, name.HasPrefix(first))
	assert.True(t, users.HasPrefix(users))
	assert.False(t, users.HasPrefix(name))
	assert.False(t, name.HasPrefix(other))
}

func mustPath(t *testing.T, raw string) Path {
	t.Helper()
	p, err := ParsePath(raw)
	require.NoError(t, err)
	return p
}
