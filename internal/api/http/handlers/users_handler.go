package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticket-api/internal/api/dto"
	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/service"
)

// UsersHandler serves account management for users and admins.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// Create POST /api/admin/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.AdminCreateUserRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	user, err := h.service.Register(c.UserContext(), service.UserCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

// List GET /api/users and /api/admin/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	users, err := h.service.List(c.UserContext(), principal.Caller())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponses(users))
}

// Get GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	user, err := h.service.GetByID(c.UserContext(), principal.Caller(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Update PUT /api/users/:id and /api/admin/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UserUpdateRequest
	if err := parseJSON(c, &req); err != nil {
		return err
	}
	// Role changes are refused before field validation.
	if req.Role != nil {
		if err := auth.AuthorizeUserManagement(principal.Caller(), "change roles"); err != nil {
			return err
		}
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}
	user, err := h.service.Update(c.UserContext(), principal.Caller(), id, service.UserUpdateInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Delete DELETE /api/users/:id and /api/admin/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal.Caller(), id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "User deleted successfully"})
}

// Stats GET /api/admin/users/stats.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Statistics(c.UserContext(), principal.Caller())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserStatsResponse(stats))
}
