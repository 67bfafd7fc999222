// Package memory provides an in-process implementation of the repository
// interfaces with the same referential rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/repository"
)

// Store holds users, tickets and comments behind one lock.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	users    map[int64]domain.User
	tickets  map[int64]domain.Ticket
	comments map[int64]domain.Comment
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:      time.Now,
		users:    map[int64]domain.User{},
		tickets:  map[int64]domain.Ticket{},
		comments: map[int64]domain.Comment{},
	}
}

// Users returns the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Tickets returns the store as a TicketRepository.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the store as a CommentRepository.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// tick returns a strictly increasing timestamp so ordering by creation is stable.
func (s *Store) tick() time.Time {
	s.nextID++
	return s.now().Add(time.Duration(s.nextID) * time.Microsecond)
}

func (s *Store) ref(id int64) *domain.UserRef {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

func uniqueViolation() error     { return &pgconn.PgError{Code: "23505", Message: "duplicate key"} }
func foreignKeyViolation() error { return &pgconn.PgError{Code: "23503", Message: "foreign key"} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return uniqueViolation()
		}
	}
	now := r.s.tick()
	user.ID = r.s.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, u := range r.s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return uniqueViolation()
		}
	}
	cur.Name, cur.Email, cur.Role = user.Name, user.Email, user.Role
	cur.UpdatedAt = r.s.tick()
	r.s.users[user.ID] = cur
	return nil
}

func (r userRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, t := range r.s.tickets {
		if t.OwnerID == id {
			return foreignKeyViolation()
		}
	}
	for cid, c := range r.s.comments {
		if c.AuthorID == id {
			c.AuthorID = 0
			r.s.comments[cid] = c
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r userRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r userRepo) ListEmailsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, u := range users {
		if u.Role == role {
			out = append(out, u.Email)
		}
	}
	return out, nil
}

func (r userRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.users)), nil
}

func (r userRepo) CountByRole(_ context.Context) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int64{}
	for _, u := range r.s.users {
		out[string(u.Role)]++
	}
	return out, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[ticket.OwnerID]; !ok {
		return foreignKeyViolation()
	}
	now := r.s.tick()
	ticket.ID = r.s.nextID
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := *ticket
	stored.Owner = nil
	r.s.tickets[ticket.ID] = stored
	return nil
}

func (r ticketRepo) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = r.s.tick()
	r.s.tickets[id] = t
	return nil
}

func (r ticketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	for cid, c := range r.s.comments {
		if c.TicketID == id {
			delete(r.s.comments, cid)
		}
	}
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Owner = r.s.ref(t.OwnerID)
	return &t, nil
}

func (r ticketRepo) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && string(t.Status) != *f.Status {
			continue
		}
		if f.Category != nil && t.Category != *f.Category {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		t.Owner = r.s.ref(t.OwnerID)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r ticketRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.tickets)), nil
}

func (r ticketRepo) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tickets {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r ticketRepo) CountBy(_ context.Context, dim repository.TicketDimension) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int64{}
	for _, t := range r.s.tickets {
		switch dim {
		case repository.DimensionStatus:
			out[string(t.Status)]++
		case repository.DimensionCategory:
			out[t.Category]++
		case repository.DimensionPriority:
			out[t.Priority]++
		}
	}
	return out, nil
}

func (r ticketRepo) CountGroupedByOwner(_ context.Context) ([]domain.OwnerTicketCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[int64]int64{}
	for _, t := range r.s.tickets {
		counts[t.OwnerID]++
	}
	out := make([]domain.OwnerTicketCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, domain.OwnerTicketCount{UserID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[c.TicketID]; !ok {
		return foreignKeyViolation()
	}
	if _, ok := r.s.users[c.AuthorID]; !ok {
		return foreignKeyViolation()
	}
	c.CreatedAt = r.s.tick()
	c.ID = r.s.nextID
	stored := *c
	stored.Author = nil
	r.s.comments[c.ID] = stored
	return nil
}

func (r commentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.s.comments {
		if c.TicketID == ticketID {
			c.Author = r.s.ref(c.AuthorID)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
