package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/repository"
	apperrors "github.com/supportdesk/ticket-api/pkg/util"
)

// UserService manages accounts.
type UserService struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	bcryptCost int
}

// UserDependencies bundles repositories for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	BcryptCost int
}

// UserCreateInput describes a new account. A nil Role means RoleUser.
type UserCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     *string
}

// UserUpdateInput carries the fields to change. Nil fields are left untouched.
type UserUpdateInput struct {
	Name  *string
	Email *string
	Role  *string
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		tickets:    deps.TicketRepo,
		bcryptCost: deps.BcryptCost,
	}
}

// Register creates an account and returns it with the password hash set.
func (s *UserService) Register(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewInvalidArgument("missing required fields", map[string]any{"fields": missing})
	}

	role := domain.RoleUser
	if input.Role != nil {
		parsed, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, apperrors.NewInvalidArgument("invalid role", map[string]any{"role": *input.Role})
		}
		role = parsed
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns every account. Admin only.
func (s *UserService) List(ctx context.Context, caller auth.Caller) ([]domain.User, error) {
	if err := auth.AuthorizeUserManagement(caller, "list users"); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetByID returns an account to its owner or an admin.
func (s *UserService) GetByID(ctx context.Context, caller auth.Caller, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, apperrors.NewInvalidArgument("invalid user id", nil)
	}
	if err := auth.AuthorizeOwner(caller, id, "view this user"); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

// Update changes name, email or role. Only admins may change roles, including their own.
func (s *UserService) Update(ctx context.Context, caller auth.Caller, id int64, input UserUpdateInput) (*domain.User, error) {
	if id <= 0 {
		return nil, apperrors.NewInvalidArgument("invalid user id", nil)
	}
	if err := auth.AuthorizeOwner(caller, id, "update this user"); err != nil {
		return nil, err
	}
	if input.Role != nil {
		if err := auth.AuthorizeUserManagement(caller, "change roles"); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewInvalidArgument("name must not be empty", nil)
		}
		user.Name = name
	}
	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, apperrors.NewInvalidArgument("invalid role", map[string]any{"role": *input.Role})
		}
		user.Role = role
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return nil, apperrors.NewInvalidArgument("email must not be empty", nil)
		}
		if email != user.Email {
			existing, err := s.users.GetByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != user.ID:
				return nil, apperrors.NewConflict("email already in use", nil)
			case err != nil && !errors.Is(err, pgx.ErrNoRows):
				return nil, apperrors.MapError(err)
			}
		}
		user.Email = email
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		if apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict) {
			return nil, apperrors.NewConflict("email already in use", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Delete removes an account that owns no tickets. Admin only.
func (s *UserService) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	if err := auth.AuthorizeUserManagement(caller, "delete users"); err != nil {
		return err
	}
	if id <= 0 {
		return apperrors.NewInvalidArgument("invalid user id", nil)
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return notFoundOr(err, "user")
	}

	owned, err := s.tickets.CountByOwner(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if owned > 0 {
		return apperrors.NewConflict("cannot delete user with active tickets", map[string]any{"tickets": owned})
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", nil)
		}
		if apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict) {
			return apperrors.NewConflict("cannot delete user with active tickets", nil)
		}
		return apperrors.MapError(err)
	}
	return nil
}

// Statistics reports account totals and ticket ownership. Admin only.
func (s *UserService) Statistics(ctx context.Context, caller auth.Caller) (*domain.UserStats, error) {
	if err := auth.AuthorizeUserManagement(caller, "view user statistics"); err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byOwner, err := s.tickets.CountGroupedByOwner(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &domain.UserStats{Total: total, ByRole: byRole, TicketsByOwner: byOwner}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
