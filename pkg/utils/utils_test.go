package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAbsInt32 is a function.
func TestAbsInt32(t *testing.T) {
	assert.EqualValues(t, 5, AbsInt32(5))
	assert.EqualValues(t, 5, AbsInt32(-5))
	assert.EqualValues(t, 0, AbsInt32(0))
}
