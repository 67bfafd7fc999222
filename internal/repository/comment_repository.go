package repository

import (
	"context"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// CommentRepository manages ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error)
}

type commentRepository struct {
	db DBTX
}

// NewCommentRepository builds repository.
func NewCommentRepository(db DBTX) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (content, ticket_id, user_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.Content,
		comment.TicketID,
		comment.AuthorID,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.content, c.ticket_id, c.user_id, c.created_at, u.id, u.name, u.email
        FROM comments c
        LEFT JOIN users u ON u.id = c.user_id
        WHERE c.ticket_id=$1
        ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		var (
			comment  domain.Comment
			authorID *int64
			refID    *int64
			refName  *string
			refEmail *string
		)
		if err := rows.Scan(
			&comment.ID,
			&comment.Content,
			&comment.TicketID,
			&authorID,
			&comment.CreatedAt,
			&refID,
			&refName,
			&refEmail,
		); err != nil {
			return nil, err
		}
		// Comments outlive their author; a removed author leaves AuthorID zero.
		if authorID != nil {
			comment.AuthorID = *authorID
		}
		if refID != nil && refName != nil && refEmail != nil {
			comment.Author = &domain.UserRef{ID: *refID, Name: *refName, Email: *refEmail}
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
