package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// TicketFilter captures exact-match listing parameters.
type TicketFilter struct {
	OwnerID  *int64
	Status   *string
	Category *string
	Priority *string
}

// TicketDimension is a column tickets can be grouped by.
type TicketDimension string

const (
	DimensionStatus   TicketDimension = "status"
	DimensionCategory TicketDimension = "category"
	DimensionPriority TicketDimension = "priority"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context) (int64, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	CountBy(ctx context.Context, dim TicketDimension) (map[string]int64, error)
	CountGroupedByOwner(ctx context.Context) ([]domain.OwnerTicketCount, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketSelect = `
        SELECT t.id, t.title, t.description, t.category, t.priority, t.status, t.user_id,
               t.created_at, t.updated_at, u.id, u.name, u.email
        FROM tickets t
        JOIN users u ON u.id = t.user_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category, priority, status, user_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		string(ticket.Status),
		ticket.OwnerID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, ticketSelect+` WHERE t.id=$1`, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("t.user_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("t.category=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.created_at DESC, t.id DESC`,
		ticketSelect, strings.Join(clauses, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&n)
	return n, err
}

func (r *ticketRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE user_id=$1`, ownerID).Scan(&n)
	return n, err
}

func (r *ticketRepository) CountBy(ctx context.Context, dim TicketDimension) (map[string]int64, error) {
	switch dim {
	case DimensionStatus, DimensionCategory, DimensionPriority:
	default:
		return nil, fmt.Errorf("unsupported ticket dimension %q", dim)
	}
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM tickets GROUP BY %[1]s`, dim)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectCounts(rows)
}

func (r *ticketRepository) CountGroupedByOwner(ctx context.Context) ([]domain.OwnerTicketCount, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, COUNT(*) FROM tickets GROUP BY user_id ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.OwnerTicketCount{}
	for rows.Next() {
		var entry domain.OwnerTicketCount
		if err := rows.Scan(&entry.UserID, &entry.Count); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		owner  domain.UserRef
		status string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&status,
		&ticket.OwnerID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&owner.ID,
		&owner.Name,
		&owner.Email,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	ticket.Owner = &owner
	return &ticket, nil
}
