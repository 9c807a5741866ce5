package investapi

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// phonePattern は国番号を任意で含む10桁の電話番号。
var phonePattern = regexp.MustCompile(`^(\+?\d{1,4})?\d{10}$`)

// FormError は入力検証の失敗。Messagesは利用者に表示する文言。
type FormError struct {
	Messages []string
}

func (e *FormError) Error() string {
	return "入力内容が不正です: " + strings.Join(e.Messages, " ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	// 登録に失敗するのはタグ名の重複だけなので無視してよい
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateForm はformを検証し、失敗した場合は*FormErrorを返す。
func validateForm(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("入力の検証に失敗: %w", err)
	}

	fe := &FormError{}
	seen := make(map[string]bool)
	for _, e := range errs {
		msg := messageFor(e)
		if seen[msg] {
			continue
		}
		seen[msg] = true
		fe.Messages = append(fe.Messages, msg)
	}
	return fe
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "All fields are required!"
	case "eqfield":
		return "Passwords do not match!"
	case "min":
		return "Password must be at least 6 characters long."
	case "phone10":
		return "Please enter a valid phone number with 10 digits."
	case "email":
		return "Please enter a valid email address."
	case "eq":
		return "Please accept the terms and conditions."
	default:
		return fmt.Sprintf("%s is invalid.", e.Field())
	}
}
