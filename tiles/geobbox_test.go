package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoBBoxCheck(t *testing.T) {
	_, err := NewGeoBBox(-200, 0, 0, 0)
	assert.Error(t, err)

	_, err = NewGeoBBox(10, 0, -10, 0)
	assert.Error(t, err)

	b, err := NewGeoBBox(-10, -5, 10, 5)
	assert.NoError(t, err)
	assert.Equal(t, "[-10.000000,-5.000000,10.000000,5.000000]", b.String())
}
