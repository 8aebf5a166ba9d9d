package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

// Init 注册自定义校验规则到 gin 的 validator 实例
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validate = v
		_ = v.RegisterValidation("btcamount", validateBTCAmount)
		_ = v.RegisterValidation("feepriority", validateFeePriority)
	}
}

// btcamount: 十进制字符串, 不校验大于 0 (那是 intent builder 的第一步)
func validateBTCAmount(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func validateFeePriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "low", "medium", "high":
		return true
	}
	return false
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			param := e.Param()

			switch e.Tag() {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must contain at least %s item(s)", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
			case "btcamount":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be a decimal BTC amount", field))
			case "feepriority":
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be low, medium or high", field))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s failed validation (%s)", field, e.Tag()))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "invalid request parameters"
}
