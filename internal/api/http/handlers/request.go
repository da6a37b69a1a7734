package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the request body into out and validates its tags.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func parseBoolQuery(c *fiber.Ctx, key string) *bool {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return &parsed
		}
	}
	return nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

// parsePaging turns page/page_size into limit/offset.
func parsePaging(c *fiber.Ctx) (int, int) {
	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "page_size", defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (page - 1) * size
}

// pathID reads an id route parameter. Anything that is not a UUID cannot name
// a stored record, so it is reported as not found.
func pathID(c *fiber.Ctx, resource string) (string, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", apperrors.NewNotFound(resource, nil)
	}
	return id.String(), nil
}
