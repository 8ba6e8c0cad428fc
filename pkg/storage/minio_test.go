package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "uploads/abc/report.pdf", ObjectName("abc", "report.pdf"))
}
