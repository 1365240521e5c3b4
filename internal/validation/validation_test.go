package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-crm/internal/apperr"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Time  string `json:"time" validate:"omitempty,hhmm"`
}

func TestStructOK(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "Ana", Email: "ana@x.com", Time: "09:30"}))
}

func TestStructReportsFirstFieldByJSONName(t *testing.T) {
	err := Struct(sample{Email: "ana@x.com"})
	require.Error(t, err)

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, "invalid_name", apperr.CodeOf(err))
	assert.Equal(t, "name is required", err.Error())
}

func TestStructRejectsMalformedEmailAndTime(t *testing.T) {
	err := Struct(sample{Name: "Ana", Email: "not-an-email"})
	assert.Equal(t, "invalid_email", apperr.CodeOf(err))

	err = Struct(sample{Name: "Ana", Email: "ana@x.com", Time: "25:00"})
	assert.Equal(t, "invalid_time", apperr.CodeOf(err))
}

func TestHelpers(t *testing.T) {
	assert.True(t, Email("Test@Mail.com"))
	assert.False(t, Email("mail.com"))
	assert.True(t, Time("9:00"))
	assert.False(t, Time("9h"))
}
