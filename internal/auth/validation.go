package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mahls/lara-auth/internal/model"
)

// RegisterInput はユーザー登録リクエストの入力。
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// LoginInput はログインリクエストの入力。
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// fieldRules は1フィールド分の検証ルール。
// ルールはvalidatorのタグ1つずつで、失敗しても後続のルールを評価する。
// requiredが失敗した場合のみ、そのフィールドの残りのルールを省略する。
type fieldRules struct {
	field string
	value func(in RegisterInput) string
	rules []string
}

var registerRules = []fieldRules{
	{field: "name", value: func(in RegisterInput) string { return in.Name }, rules: []string{"required", "max=255"}},
	{field: "email", value: func(in RegisterInput) string { return in.Email }, rules: []string{"required", "email", "max=255"}},
	{field: "password", value: func(in RegisterInput) string { return in.Password }, rules: []string{"required", "min=8", "bcryptlen"}},
}

// newValidator は登録入力用のバリデータを構築する。
// カスタムルールの登録失敗は起動時のプログラミングエラーとしてpanicする。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// bcryptは72バイトを超えるパスワードを受け付けない
	if err := v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	}); err != nil {
		panic(fmt.Sprintf("failed to register bcryptlen validation: %v", err))
	}
	return v
}

// validateRegisterInput は全フィールドの全ルールを検証し、違反をフィールドごとに集約して返す。
// 違反がない場合は空のValidationErrorを返す。
func validateRegisterInput(v *validator.Validate, in RegisterInput) (*model.ValidationError, error) {
	verr := model.NewValidationError()

	for _, fr := range registerRules {
		value := fr.value(in)
		for _, rule := range fr.rules {
			fe, err := checkVar(v, value, rule)
			if err != nil {
				return nil, fmt.Errorf("failed to validate %s: %w", fr.field, err)
			}
			if fe == nil {
				continue
			}
			verr.Add(fr.field, validationMessage(fr.field, fe))
			if fe.Tag() == "required" {
				break
			}
		}
	}

	// 確認用パスワードの不一致はpasswordの違反として、他のルールとは独立に報告する
	if in.Password != "" {
		fe, err := checkVarWithValue(v, in.Password, in.PasswordConfirmation, "eqfield")
		if err != nil {
			return nil, fmt.Errorf("failed to validate password confirmation: %w", err)
		}
		if fe != nil {
			verr.Add("password", validationMessage("password", fe))
		}
	}

	return verr, nil
}

// checkVar は1つのルールで値を検証し、違反があればそのFieldErrorを返す。
func checkVar(v *validator.Validate, value, rule string) (validator.FieldError, error) {
	return firstFieldError(v.Var(value, rule))
}

// checkVarWithValue はother値と比較するルールで値を検証する。
func checkVarWithValue(v *validator.Validate, value, other, rule string) (validator.FieldError, error) {
	return firstFieldError(v.VarWithValue(value, other, rule))
}

func firstFieldError(err error) (validator.FieldError, error) {
	if err == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return nil, err
	}
	return fieldErrs[0], nil
}

// validationMessage はバリデーション違反をクライアント向けメッセージに変換する。
func validationMessage(name string, fe validator.FieldError) string {
	field := strings.ReplaceAll(name, "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", field)
	case "bcryptlen":
		return fmt.Sprintf("The %s field must not be greater than %d bytes.", field, maxPasswordBytes)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// emailTakenMessage はメールアドレス重複時のメッセージ。
const emailTakenMessage = "The email has already been taken."
