package dto

import (
	"time"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// UserRegisterRequest payload for self-service registration.
type UserRegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminCreateUserRequest lets admins pick the role of a new account.
type AdminCreateUserRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UserUpdateRequest carries optional profile changes. Role is left unvalidated here
// so non-admins get Forbidden whatever value they send.
type UserUpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role"`
}

// UserResponse is the public profile.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRef is the owner or author embedded in tickets and comments.
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserTicketCount is one row of the per-user ticket breakdown.
type UserTicketCount struct {
	UserID int64 `json:"userId"`
	Count  int64 `json:"count"`
}

// UserStatsResponse aggregates accounts.
type UserStatsResponse struct {
	TotalUsers    int64             `json:"totalUsers"`
	ByRole        map[string]int64  `json:"byRole"`
	TicketsByUser []UserTicketCount `json:"ticketsByUser"`
}

// MessageResponse confirms an action without returning a resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewUserResponse projects a user without credentials.
func NewUserResponse(u *domain.User) UserResponse {
	p := u.Profile()
	return UserResponse{ID: p.ID, Name: p.Name, Email: p.Email, Role: string(p.Role), CreatedAt: p.CreatedAt}
}

// NewUserResponses projects a list of users.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

// NewUserStatsResponse converts aggregate counts.
func NewUserStatsResponse(s *domain.UserStats) UserStatsResponse {
	rows := make([]UserTicketCount, 0, len(s.TicketsByOwner))
	for _, r := range s.TicketsByOwner {
		rows = append(rows, UserTicketCount{UserID: r.UserID, Count: r.Count})
	}
	byRole := s.ByRole
	if byRole == nil {
		byRole = map[string]int64{}
	}
	return UserStatsResponse{TotalUsers: s.Total, ByRole: byRole, TicketsByUser: rows}
}

func newUserRef(r *domain.UserRef) *UserRef {
	if r == nil {
		return nil
	}
	return &UserRef{ID: r.ID, Name: r.Name, Email: r.Email}
}
