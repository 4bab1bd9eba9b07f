package utils

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRiderNumber(t *testing.T) {
	for _, ok := range []string{"0", "1", "42", "99999", "123456", "99999999999", " 7 "} {
		assert.True(t, IsRiderNumber(ok), ok)
	}
	for _, bad := range []string{"", "00", "007", "12a", "-3", "+3", "100000000000", "1.5"} {
		assert.False(t, IsRiderNumber(bad), bad)
	}
}

func TestFieldRules(t *testing.T) {
	assert.True(t, IsPhone10("0771234567"))
	assert.False(t, IsPhone10("077123456"))
	assert.False(t, IsPhone10("077123456x"))

	assert.True(t, IsPersonName("Kamal Perera"))
	assert.False(t, IsPersonName("R2D2"))
	assert.False(t, IsPersonName(""))

	assert.True(t, IsGmail("rider.one@gmail.com"))
	assert.False(t, IsGmail("rider@yahoo.com"))
}

type riderForm struct {
	Number string `binding:"required,ridernumber"`
	Phone  string `binding:"required,phone10"`
}

func TestRegisterValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	err := binding.Validator.ValidateStruct(&riderForm{Number: "12", Phone: "0771234567"})
	assert.NoError(t, err)

	err = binding.Validator.ValidateStruct(&riderForm{Number: "012", Phone: "0771234567"})
	require.Error(t, err)
	assert.Equal(t, "RiderId must be digits only", ValidationMessage(err))
}
