package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mrlokans/librarian/internal/entities"
)

var setupValidatorOnce sync.Once

// SetupValidator configures gin's validator with JSON field names and the
// domain tags used by request bodies. Safe to call more than once.
func SetupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		if err := registerDomainTags(v); err != nil {
			panic(fmt.Sprintf("register validation tags: %v", err))
		}
	})
}

// registerDomainTags adds the payment_method and member_role tags.
func registerDomainTags(v *validator.Validate) error {
	if err := v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return entities.PaymentMethod(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("member_role", func(fl validator.FieldLevel) bool {
		role := entities.UserRole(fl.Field().String())
		return role == "" || role == entities.UserRoleStudent || role == entities.UserRoleExternal
	})
}

// ValidationDetail describes one rejected field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// respondBindError reports a body that failed to decode or validate.
func respondBindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "bad_request"})
		return
	}

	details := make([]ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ValidationDetail{Field: fe.Field(), Message: validationMessage(fe)})
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   details[0].Field + ": " + details[0].Message,
		Code:    "validation_failed",
		Details: details,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "payment_method":
		return "must be one of cash, card, mobile_money"
	case "member_role":
		return "must be student or external"
	}
	return "is invalid"
}
