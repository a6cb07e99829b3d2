package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/heredeirxs/internal/model"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 6
	// MaxNameLength は氏名フィールドの最大文字数。
	MaxNameLength = 80
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ]{6,20}$`)
)

// ValidateEmail はメールアドレスの形式を検証する。
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailPattern.MatchString(email) {
		return model.NewValidationError("email", "O correo non ten un formato válido.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationError("email", "O correo non ten un formato válido.")
	}
	return nil
}

// ValidatePassword はパスワードの長さを検証する。
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewValidationError("password", "O contrasinal debe ter polo menos 6 caracteres.")
	}
	return nil
}

// ValidateName は氏名フィールドの長さを検証する。空は許可する。
func ValidateName(field, value string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > MaxNameLength {
		return model.NewValidationError(field, "O nome non pode superar os 80 caracteres.")
	}
	return nil
}

// ValidatePhone は電話番号の形式を検証する。空は許可する。
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return model.NewValidationError("phone", "O teléfono só pode conter díxitos, espazos e un + inicial.")
	}
	return nil
}

// SignUpInput はサインアップフォームの入力。
type SignUpInput struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	Phone           string
}

// Validate は外部呼び出しの前にフォーム全体を検証する。
// 最初に見つかったエラーを返す。
func (in SignUpInput) Validate() error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	if in.Password != in.PasswordConfirm {
		return model.NewValidationError("password_confirm", "Os contrasinais non coinciden.")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return model.NewValidationError("first_name", "O nome é obrigatorio.")
	}
	if err := ValidateName("first_name", in.FirstName); err != nil {
		return err
	}
	if err := ValidateName("last_name", in.LastName); err != nil {
		return err
	}
	return ValidatePhone(in.Phone)
}

// metadata はGoTrueのuser_metadataに保存する属性を返す。
func (in SignUpInput) metadata() map[string]string {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	m := map[string]string{
		"first_name": first,
		"last_name":  last,
		"full_name":  strings.TrimSpace(first + " " + last),
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		m["phone"] = phone
	}
	return m
}
