package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticket-api/internal/api/dto"
	"github.com/supportdesk/ticket-api/internal/auth"
	apperrors "github.com/supportdesk/ticket-api/pkg/util"
)

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

// parseIDParam reads a positive integer route parameter.
func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidArgument("invalid "+name, map[string]any{name: raw})
	}
	return id, nil
}

// bindJSON parses and validates a request body.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := parseJSON(c, dst); err != nil {
		return err
	}
	return dto.Validate(dst)
}

func parseJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewInvalidArgument("invalid payload", nil)
	}
	return nil
}

// hideForbidden turns a policy denial into the same not-found a missing record produces.
func hideForbidden(err error, resource string) error {
	if apperrors.IsCode(err, apperrors.CodeForbidden) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}
