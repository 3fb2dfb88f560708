package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrEthical07/carauth"
	validation "github.com/go-ozzo/ozzo-validation"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
	Terms           bool   `json:"terms"`
}

// Validate checks the fields the engine never sees.
func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(sameAs(r.Password))),
		validation.Field(&r.Terms, validation.By(accepted)),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConfirmPassword, validation.Required, validation.By(sameAs(r.Password))),
	)
}

type profileRequest struct {
	FullName        *string              `json:"fullName"`
	Phone           *string              `json:"phone"`
	Email           *string              `json:"email"`
	Preferences     *carauth.Preferences `json:"preferences"`
	CurrentPassword string               `json:"currentPassword"`
	NewPassword     string               `json:"newPassword"`
}

func (r profileRequest) update() carauth.ProfileUpdate {
	return carauth.ProfileUpdate{
		FullName:        r.FullName,
		Phone:           r.Phone,
		Email:           r.Email,
		Preferences:     r.Preferences,
		CurrentPassword: r.CurrentPassword,
		NewPassword:     r.NewPassword,
	}
}

func sameAs(password string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != password {
			return errors.New("Passwords do not match")
		}
		return nil
	}
}

func accepted(value interface{}) error {
	if ok, _ := value.(bool); !ok {
		return errors.New("You must accept the terms and conditions")
	}
	return nil
}

// decodeJSON reads one JSON object from the body. Unknown fields are
// ignored; an empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return carauth.NewValidationError("body", "Malformed JSON body")
	}
	return nil
}

// transportError turns ozzo errors into a carauth.ValidationError.
func transportError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return carauth.NewValidationError("body", err.Error())
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return &carauth.ValidationError{Fields: fields}
}
