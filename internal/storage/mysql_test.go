package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 候选人归并键：大小写、首尾空白不同的同一邮箱必须落到同一键
func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@x.com", NormalizeEmail("John@X.com"))
	assert.Equal(t, "john@x.com", NormalizeEmail("  john@X.COM "))
	assert.Equal(t, NormalizeEmail("John@X.com"), NormalizeEmail("john@x.com"))

	// 纯空白视同空邮箱，不参与归并
	assert.Equal(t, "", NormalizeEmail("   "))
}
