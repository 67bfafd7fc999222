package domain

import "time"

// Comment is a message on a ticket thread. Comments are append-only.
type Comment struct {
	ID        int64
	Content   string
	TicketID  int64
	AuthorID  int64 // zero once the author account is deleted
	Author    *UserRef
	CreatedAt time.Time
}
