package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.3.0", "0.3.0", true},
		{"0.3.1", "0.3.0", true},
		{"0.2.9", "0.3.0", false},
		{"1.0.0", "0.9.12", true},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, IsVersionGreaterOrEqualThan(test.version, test.target), "%s >= %s", test.version, test.target)
	}
}

func TestIsVersionGreaterThan(t *testing.T) {
	assert.False(t, IsVersionGreaterThan("0.3.0", "0.3.0"))
	assert.True(t, IsVersionGreaterThan("0.10.0", "0.9.0"))
}

func TestGetMinorVersion(t *testing.T) {
	assert.Equal(t, "0.3", GetMinorVersion("0.3.7"))
	assert.Equal(t, "", GetMinorVersion("broken"))
}
