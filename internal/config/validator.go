package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the EnclaveConfig using struct tags and custom
// cross-field rules. Returns an error if validation fails, with
// actionable error messages.
func (c *EnclaveConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateToolHandlerMutualExclusion(); err != nil {
		return err
	}

	return nil
}

// validateToolHandlerMutualExclusion ensures at most one of HTTP or
// Command is set. Both empty is OK: the default ToolHandler simply
// rejects every call, which a caller may want when only validation and
// transform are being exercised.
func (c *EnclaveConfig) validateToolHandlerMutualExclusion() error {
	hasHTTP := c.ToolHandler.HTTP != ""
	hasCommand := c.ToolHandler.Command != ""

	if hasHTTP && hasCommand {
		return errors.New("tool_handler: specify http OR command, not both")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
