package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAlternatingRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Message
		cull bool
		want []Message
	}{
		{
			name: "empty",
			in:   nil,
			want: []Message{},
		},
		{
			name: "already alternating",
			in: []Message{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, Content: "b"},
			},
			want: []Message{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, Content: "b"},
			},
		},
		{
			name: "merges consecutive users",
			in: []Message{
				{Role: RoleUser, Content: "a"},
				{Role: RoleUser, Content: "b"},
				{Role: RoleAssistant, Content: "c"},
			},
			want: []Message{
				{Role: RoleUser, Content: "a\n\nb"},
				{Role: RoleAssistant, Content: "c"},
			},
		},
		{
			name: "culls empty leading system",
			in: []Message{
				{Role: RoleSystem, Content: ""},
				{Role: RoleUser, Content: "a"},
			},
			cull: true,
			want: []Message{{Role: RoleUser, Content: "a"}},
		},
		{
			name: "keeps empty system when not culling",
			in: []Message{
				{Role: RoleSystem, Content: ""},
				{Role: RoleUser, Content: "a"},
			},
			want: []Message{
				{Role: RoleSystem, Content: ""},
				{Role: RoleUser, Content: "a"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := EnsureAlternatingRoles(tt.in, tt.cull)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureAlternatingRoles_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []Message{
		{Role: RoleUser, Content: "a", Images: []string{"x.png"}},
		{Role: RoleUser, Content: "b", Images: []string{"y.png"}},
	}
	out, merged := EnsureAlternatingRoles(in, false)

	require.Len(t, out, 1)
	assert.Equal(t, 1, merged)
	assert.Equal(t, []string{"x.png", "y.png"}, out[0].Images)
	assert.Equal(t, "a", in[0].Content)
	assert.Equal(t, []string{"x.png"}, in[0].Images)
}

func TestClone(t *testing.T) {
	t.Parallel()

	in := []Message{{Role: RoleUser, Content: "a", Images: []string{"x"}}}
	out := Clone(in)
	out[0].Images[0] = "changed"
	out[0].Content = "changed"

	assert.Equal(t, "x", in[0].Images[0])
	assert.Equal(t, "a", in[0].Content)
	assert.NotNil(t, Clone(nil))
}

func TestRoleValid(t *testing.T) {
	t.Parallel()
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleSystem.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, Role("tool").Valid())
}
