package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "comprovante", SanitizeString("  comprovante  ", 0))
	assert.Equal(t, "compr", SanitizeString("comprovante", 5))
	assert.Equal(t, "n", SanitizeString("não", 2))
}
