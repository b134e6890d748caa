package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seat-booking/internal/model"
)

// NotificationRepo is the MySQL implementation of NotificationStore.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a NotificationRepo bound to db.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// AddNotification uses INSERT IGNORE: the id is the message id, so a
// redelivered message lands on the primary key and is dropped.
func (r *NotificationRepo) AddNotification(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO notifications (id, user_id, type, booking_id, ticket_id, message, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.BookingID, n.TicketID, n.Message, n.CreatedAt.UTC())
	return err
}

func (r *NotificationRepo) FindNotificationsByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, booking_id, ticket_id, message, created_at
         FROM notifications
         WHERE user_id = ?
         ORDER BY created_at DESC
         LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.BookingID, &n.TicketID, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, &n)
	}
	return out, rows.Err()
}
