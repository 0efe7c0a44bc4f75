package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailable(t *testing.T) {
	assert.Equal(t, 3, Available(3, 0))
	assert.Equal(t, 1, Available(3, 2))
	assert.Equal(t, 0, Available(3, 3))
	// 総数を減らして貸出中が上回っても負にしない
	assert.Equal(t, 0, Available(1, 4))
	assert.Equal(t, 0, Available(0, 0))
}
