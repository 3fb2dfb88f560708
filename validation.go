package carauth

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const passwordSpecials = "@$!%*?&"

// inputValidator applies the account input policy. Every engine operation
// validates through it, so transports only check transport-level fields.
type inputValidator struct {
	minPassword       int
	maxPassword       int
	requireComplexity bool
}

func newInputValidator(cfg PasswordConfig) inputValidator {
	return inputValidator{
		minPassword:       cfg.MinLength,
		maxPassword:       cfg.MaxLength,
		requireComplexity: cfg.RequireComplexity,
	}
}

type registerPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (v inputValidator) register(in RegisterInput) (RegisterInput, error) {
	p := registerPayload{
		FullName: strings.TrimSpace(in.FullName),
		Email:    normalizeEmail(in.Email),
		Password: in.Password,
		Phone:    strings.TrimSpace(in.Phone),
	}

	err := validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.RuneLength(2, 50)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, v.passwordRules()...),
		validation.Field(&p.Phone, validation.By(phoneRule)),
	)
	if err != nil {
		return in, toValidationError(err)
	}

	phone, _ := normalizePhone(p.Phone)
	return RegisterInput{FullName: p.FullName, Email: p.Email, Password: p.Password, Phone: phone}, nil
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (v inputValidator) login(email, password string) (string, error) {
	p := loginPayload{Email: normalizeEmail(email), Password: password}
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
	)
	if err != nil {
		return "", toValidationError(err)
	}
	return p.Email, nil
}

func (v inputValidator) password(field, password string) error {
	if err := validation.Validate(password, v.passwordRules()...); err != nil {
		return NewValidationError(field, err.Error())
	}
	return nil
}

type profilePayload struct {
	FullName        *string `json:"fullName"`
	Phone           *string `json:"phone"`
	Email           *string `json:"email"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (v inputValidator) profile(upd ProfileUpdate) (ProfileUpdate, error) {
	out := upd
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		out.FullName = &name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		out.Phone = &phone
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		out.Email = &email
	}

	p := profilePayload{
		FullName:        out.FullName,
		Phone:           out.Phone,
		Email:           out.Email,
		CurrentPassword: upd.CurrentPassword,
		NewPassword:     upd.NewPassword,
	}
	var newPasswordRules, currentPasswordRules []validation.Rule
	if p.NewPassword != "" {
		newPasswordRules = v.passwordRules()
		currentPasswordRules = []validation.Rule{validation.Required}
	}
	err := validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.NilOrNotEmpty, validation.RuneLength(2, 50)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&p.Phone, validation.By(phoneRule)),
		validation.Field(&p.NewPassword, newPasswordRules...),
		validation.Field(&p.CurrentPassword, currentPasswordRules...),
	)
	if err != nil {
		return upd, toValidationError(err)
	}

	if out.Phone != nil && *out.Phone != "" {
		phone, _ := normalizePhone(*out.Phone)
		out.Phone = &phone
	}
	return out, nil
}

func (v inputValidator) passwordRules() []validation.Rule {
	rules := []validation.Rule{
		validation.Required,
		validation.Length(v.minPassword, v.maxPassword),
	}
	if v.requireComplexity {
		rules = append(rules, validation.By(passwordComplexity))
	}
	return rules
}

func passwordComplexity(value interface{}) error {
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
		return errors.New("must contain an uppercase letter, a lowercase letter, a digit and one of " + passwordSpecials)
	}
	return nil
}

func phoneRule(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	if s == "" {
		return nil
	}
	if _, ok := normalizePhone(s); !ok {
		return errors.New("must be a valid phone number in international format")
	}
	return nil
}

// normalizePhone parses an international number and returns it in E.164.
func normalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, "+") {
		raw = "+" + raw
	}
	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return email != "" && is.Email.Validate(email) == nil
}

func toValidationError(err error) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("request", err.Error())
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for field, ferr := range fieldErrs {
		if ferr == nil {
			continue
		}
		out.Fields[field] = ferr.Error()
	}
	return out
}
