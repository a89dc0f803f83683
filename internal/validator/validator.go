// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("risk_profile", validateRiskProfile)
		_ = v.RegisterValidation("trade_side", validateTradeSide)
		_ = v.RegisterValidation("order_type", validateOrderType)
		_ = v.RegisterValidation("ticker", validateTicker)
		_ = v.RegisterValidation("oversight_decision", validateOversightDecision)
	}
}

func validateRiskProfile(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "conservative", "moderate", "aggressive":
		return true
	}
	return false
}

func validateTradeSide(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "buy", "sell":
		return true
	}
	return false
}

func validateOrderType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "market", "limit":
		return true
	}
	return false
}

func validateTicker(fl validator.FieldLevel) bool {
	return symbolRegex.MatchString(fl.Field().String())
}

func validateOversightDecision(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "approved", "rejected":
		return true
	}
	return false
}
