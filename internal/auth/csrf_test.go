package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCSRFToken(t *testing.T) {
	first, err := GenerateCSRFToken()
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := GenerateCSRFToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidateCSRF(t *testing.T) {
	assert.NoError(t, ValidateCSRF("matching-token", "matching-token"))
	assert.ErrorIs(t, ValidateCSRF("cookie-token", "header-token"), ErrCSRFMismatch)
	assert.ErrorIs(t, ValidateCSRF("", ""), ErrCSRFMismatch)
	assert.ErrorIs(t, ValidateCSRF("cookie-token", ""), ErrCSRFMismatch)
	assert.ErrorIs(t, ValidateCSRF("", "header-token"), ErrCSRFMismatch)
}
