package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oggyb/muzz-match/internal/db"
)

var registerOnce sync.Once

// registerValidations adds the custom binding rules to gin's validator.
func registerValidations() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("decision_action", validateDecisionAction)
		}
	})
}

// validateDecisionAction accepts "like" or "skip".
func validateDecisionAction(fl validator.FieldLevel) bool {
	_, err := db.ParseAction(fl.Field().String())
	return err == nil
}
