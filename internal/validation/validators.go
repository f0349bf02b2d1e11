package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/taskpilot/taskpilot/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("message_role", validateMessageRole); err != nil {
		panic(fmt.Sprintf("failed to register message_role validator: %v", err))
	}
}

// validateMessageRole validates that a string is a valid MessageRole enum value
func validateMessageRole(fl validator.FieldLevel) bool {
	return models.ValidRole(models.MessageRole(fl.Field().String()))
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
