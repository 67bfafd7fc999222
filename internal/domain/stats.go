package domain

// UserStats aggregates account counts and ticket ownership.
type UserStats struct {
	Total          int64
	ByRole         map[string]int64
	TicketsByOwner []OwnerTicketCount
}

// OwnerTicketCount is the number of tickets owned by one user.
type OwnerTicketCount struct {
	UserID int64
	Count  int64
}
