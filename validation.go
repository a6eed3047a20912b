package users

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterInput is the payload accepted by Lifecycle.Register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Validate checks the registration payload: username 6-20 characters, valid
// email, password at least 8 characters mixing upper, lower, digit, and
// special characters.
func (r RegisterInput) Validate() error {
	return wrapValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(6, 20)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 100),
			validation.By(requirePasswordStrength),
		),
		validation.Field(&r.Avatar, is.URL),
	))
}

// UpdateInput is the patch accepted by Lifecycle.Update. Nil fields are left
// untouched. Password is deliberately absent: updates never change secret
// material.
type UpdateInput struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// Validate checks whichever patch fields are present.
func (r UpdateInput) Validate() error {
	return wrapValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(6, 20)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Avatar, is.URL),
	))
}

// Empty reports whether the patch changes nothing.
func (r UpdateInput) Empty() bool {
	return r.Username == nil && r.Email == nil && r.Bio == nil && r.Avatar == nil
}

const passwordSpecials = "@$!%*?&#^()-_=+[]{}.,:;~"

func requirePasswordStrength(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	if !lower || !upper || !digit || !special {
		return errors.New("must contain lower and upper case letters, a digit, and a special character")
	}

	return nil
}

// wrapValidationError converts ozzo field errors into a single structured
// validation error carrying a field -> message map.
func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, fieldErr := range fieldErrs {
			meta[field] = fieldErr.Error()
		}
	} else {
		meta["_"] = err.Error()
	}

	return goerrors.New("invalid input provided", goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}
