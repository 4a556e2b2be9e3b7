package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/renavest/chat-service/internal/domain"
)

type Repository struct {
	DB *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) GetChannel(
	ctx context.Context,
	channelID int64,
) (*domain.Channel, error) {

	var ch domain.Channel
	var lastAt sql.NullTime
	var preview sql.NullString

	err := r.DB.QueryRowContext(ctx, `
		SELECT id, provider_id, counterpart_user_id,
		       last_message_at, last_message_preview,
		       unread_provider, unread_counterpart, created_at
		FROM chat_channels
		WHERE id = $1
	`, channelID).Scan(
		&ch.ID,
		&ch.ProviderID,
		&ch.CounterpartUserID,
		&lastAt,
		&preview,
		&ch.UnreadProvider,
		&ch.UnreadCounterpart,
		&ch.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrChannelNotFound
		}
		return nil, err
	}

	if lastAt.Valid {
		ch.LastMessageAt = &lastAt.Time
	}
	ch.LastMessagePreview = preview.String

	return &ch, nil
}

func (r *Repository) ProviderIDByUser(
	ctx context.Context,
	userID string,
) (int64, bool, error) {

	var id int64
	err := r.DB.QueryRowContext(ctx, `
		SELECT id FROM providers WHERE user_id = $1
	`, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (r *Repository) UserByID(
	ctx context.Context,
	userID string,
) (*domain.User, error) {

	var u domain.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, email FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ProviderUser(
	ctx context.Context,
	providerID int64,
) (*domain.User, error) {

	var u domain.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.email
		FROM users u
		JOIN providers p ON p.user_id = u.id
		WHERE p.id = $1
	`, providerID).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) InsertMessage(
	ctx context.Context,
	msg *domain.Message,
) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO chat_messages (
			id, channel_id, sender_id,
			content, message_type, status, sent_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		msg.ID,
		msg.ChannelID,
		msg.SenderID,
		msg.Content,
		msg.Type,
		msg.Status,
		msg.SentAt,
	)
	return err
}

func (r *Repository) RecentMessages(
	ctx context.Context,
	channelID int64,
	limit int,
) ([]*domain.Message, error) {

	// Newest N rows, re-sorted chronologically so the replay batch reads in
	// send order.
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, channel_id, sender_id, content, message_type, status, sent_at
		FROM (
			SELECT id, channel_id, sender_id, content, message_type, status, sent_at
			FROM chat_messages
			WHERE channel_id = $1
			ORDER BY sent_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC, id ASC
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *Repository) AllMessages(
	ctx context.Context,
	channelID int64,
) ([]*domain.Message, error) {

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, channel_id, sender_id, content, message_type, status, sent_at
		FROM chat_messages
		WHERE channel_id = $1
		ORDER BY sent_at ASC, id ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *Repository) BumpChannelSummary(
	ctx context.Context,
	channelID int64,
	at time.Time,
	preview string,
	recipient domain.Role,
) error {
	// The increment runs in the database so concurrent senders on the same
	// channel never lose a count.
	_, err := r.DB.ExecContext(ctx, `
		UPDATE chat_channels
		SET last_message_at = $2,
		    last_message_preview = $3,
		    unread_provider = unread_provider +
		        CASE WHEN $4 = 'provider' THEN 1 ELSE 0 END,
		    unread_counterpart = unread_counterpart +
		        CASE WHEN $4 = 'counterpart' THEN 1 ELSE 0 END
		WHERE id = $1
	`, channelID, at, preview, string(recipient))
	return err
}

func (r *Repository) ChannelsByProvider(
	ctx context.Context,
	providerID int64,
) ([]*domain.Channel, error) {
	return r.listChannels(ctx, `
		SELECT id, provider_id, counterpart_user_id,
		       last_message_at, last_message_preview,
		       unread_provider, unread_counterpart, created_at
		FROM chat_channels
		WHERE provider_id = $1
		ORDER BY last_message_at DESC NULLS LAST, id DESC
	`, providerID)
}

func (r *Repository) ChannelsByCounterpart(
	ctx context.Context,
	userID string,
) ([]*domain.Channel, error) {
	return r.listChannels(ctx, `
		SELECT id, provider_id, counterpart_user_id,
		       last_message_at, last_message_preview,
		       unread_provider, unread_counterpart, created_at
		FROM chat_channels
		WHERE counterpart_user_id = $1
		ORDER BY last_message_at DESC NULLS LAST, id DESC
	`, userID)
}

func (r *Repository) listChannels(
	ctx context.Context,
	query string,
	arg interface{},
) ([]*domain.Channel, error) {

	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*domain.Channel
	for rows.Next() {
		var ch domain.Channel
		var lastAt sql.NullTime
		var preview sql.NullString
		if err := rows.Scan(
			&ch.ID,
			&ch.ProviderID,
			&ch.CounterpartUserID,
			&lastAt,
			&preview,
			&ch.UnreadProvider,
			&ch.UnreadCounterpart,
			&ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastAt.Valid {
			ch.LastMessageAt = &lastAt.Time
		}
		ch.LastMessagePreview = preview.String
		channels = append(channels, &ch)
	}

	return channels, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ChannelID,
			&msg.SenderID,
			&msg.Content,
			&msg.Type,
			&msg.Status,
			&msg.SentAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
