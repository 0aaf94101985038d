package pop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACMintAndValidate(t *testing.T) {
	scheme := NewHMACScheme([]byte("secret"))
	subject := make([]byte, 20)
	subject[0] = 0xaa

	token := scheme.Mint(subject)
	require.NoError(t, scheme.Validate(subject, token))
}

func TestHMACValidateRejectsWrongToken(t *testing.T) {
	scheme := NewHMACScheme([]byte("secret"))
	subject := make([]byte, 20)
	err := scheme.Validate(subject, "garbage")
	assert.ErrorIs(t, err, ErrInvalidAuth)
}

func TestHMACValidateRejectsWrongSubject(t *testing.T) {
	scheme := NewHMACScheme([]byte("secret"))
	subjectA := make([]byte, 20)
	subjectA[0] = 1
	subjectB := make([]byte, 20)
	subjectB[0] = 2

	token := scheme.Mint(subjectA)
	err := scheme.Validate(subjectB, token)
	assert.ErrorIs(t, err, ErrInvalidAuth)
}
