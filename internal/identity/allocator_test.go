package identity

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^(Happy|Sleepy|Grumpy|Dopey|Sneezy|Bashful|Doc)(Panda|Tiger|Lion|Bear|Fox|Wolf|Eagle)$`)

func TestAllocator_Allocate(t *testing.T) {
	a := NewAllocator()

	for i := 0; i < 50; i++ {
		id, err := a.Allocate()
		require.NoError(t, err)
		assert.Regexp(t, idPattern, string(id))
	}
}

func TestAllocator_Deterministic(t *testing.T) {
	a := NewAllocator()
	a.pick = func(n int) int { return n - 1 }

	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, "DocEagle", string(id))
}

func TestAllocator_WithSuffix(t *testing.T) {
	a := NewAllocator(WithSuffix(4))

	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z][a-z]+[A-Z][a-z]+[0-9]{4}$`, string(id))
}

func TestAllocator_Resolve(t *testing.T) {
	a := NewAllocator()

	tests := []struct {
		name     string
		override string
		exact    string
	}{
		{name: "explicit id", override: "alice", exact: "alice"},
		{name: "trimmed id", override: "  bob ", exact: "bob"},
		{name: "blank allocates", override: "   "},
		{name: "empty allocates", override: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Resolve(tt.override)
			require.NoError(t, err)
			if tt.exact != "" {
				assert.Equal(t, tt.exact, string(id))
				return
			}
			assert.Regexp(t, idPattern, string(id))
		})
	}
}
