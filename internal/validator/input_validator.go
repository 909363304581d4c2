package validator

import (
	"reflect"
	"strings"

	"shoppingcart/internal/usecase"

	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// 明細の入力ルール
// priceはnumeric(12,2)なので最小は0.01
type cartItemRules struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Price    decimal.Decimal `json:"price" validate:"gte=0.01,lte=9999999999.99"`
	Quantity int             `json:"quantity" validate:"gte=1"`
}

// 項目ごとのメッセージ
var fieldMessages = map[string]string{
	"name":     "Item name is required.",
	"price":    "Price must be greater than 0.",
	"quantity": "Quantity must be greater than 0.",
}

type inputValidator struct {
	v *playground.Validate
}

// Usecaseは interface を依存注入
func NewInputValidator() usecase.InputValidator {
	v := playground.New()

	//エラーの項目名はjsonタグ
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	//decimalはfloat64として比較
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	return &inputValidator{v: v}
}

// 明細の入力を検証。違反が無ければ nil
func (iv *inputValidator) ValidateCartItem(in usecase.CartItemInput) []usecase.FieldViolation {
	rules := cartItemRules{
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Quantity: in.Quantity,
	}

	err := iv.v.Struct(rules)
	if err == nil {
		return nil
	}

	errs, ok := err.(playground.ValidationErrors)
	if !ok {
		return []usecase.FieldViolation{{Field: "body", Message: err.Error()}}
	}

	out := make([]usecase.FieldViolation, 0, len(errs))
	seen := map[string]bool{}
	for _, fe := range errs {
		field := fe.Field()
		if seen[field] {
			continue
		}
		seen[field] = true

		msg, ok := fieldMessages[field]
		if !ok {
			msg = field + " is invalid."
		}
		if field == "name" && fe.Tag() == "max" {
			msg = "Item name must be at most 255 characters."
		}
		if field == "price" && fe.Tag() == "lte" {
			msg = "Price is too large."
		}
		out = append(out, usecase.FieldViolation{Field: field, Message: msg})
	}
	return out
}

// email形式をチェック
func (iv *inputValidator) ValidateEmail(email string) bool {
	return iv.v.Var(email, "required,email") == nil
}
