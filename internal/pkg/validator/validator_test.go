package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type guestInput struct {
	Name  string `json:"guest_name" validate:"notblank,max=120"`
	Email string `json:"guest_email" validate:"required,email"`
	Kind  string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	errs := Validate(guestInput{Name: "  ", Email: "nope", Kind: "c"})

	assert.Equal(t, "is required", errs["guest_name"])
	assert.Equal(t, "must be a valid email", errs["guest_email"])
	assert.Equal(t, "must be one of: a b", errs["kind"])
}

func TestValidateOK(t *testing.T) {
	assert.Nil(t, Validate(guestInput{Name: "Ann", Email: "ann@example.com"}))
}
