package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"leafchat/internal/domain"
)

// ReplaceTranscript swaps the stored messages of channel for msgs.
func (s *Store) ReplaceTranscript(ctx context.Context, channel string, msgs []domain.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM transcript WHERE channel = ?`, channel); err != nil {
		return err
	}
	for i, msg := range msgs {
		if err = insertMessage(ctx, tx, channel, int64(i+1), msg); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendMessage adds msg after the last stored message of channel.
func (s *Store) AppendMessage(ctx context.Context, channel string, msg domain.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var last sql.NullInt64
	if err = tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM transcript WHERE channel = ?`, channel).Scan(&last); err != nil {
		return err
	}
	if err = insertMessage(ctx, tx, channel, last.Int64+1, msg); err != nil {
		return err
	}
	return tx.Commit()
}

// Recent returns up to limit of the newest messages of channel, oldest first.
func (s *Store) Recent(ctx context.Context, channel string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, nickname, profile_picture, body, file_url,
			is_image, is_video, is_system, is_admin, sent_at
		FROM transcript
		WHERE channel = ?
		ORDER BY seq DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			m      domain.Message
			sentAt sql.NullTime
		)
		if err := rows.Scan(&m.Username, &m.Nickname, &m.ProfilePicture, &m.Message, &m.FileURL,
			&m.IsImage, &m.IsVideo, &m.IsSystem, &m.IsAdmin, &sentAt); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			m.Timestamp = sentAt.Time
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, channel string, seq int64, m domain.Message) error {
	var sentAt any
	if !m.Timestamp.IsZero() {
		sentAt = m.Timestamp.UTC().Truncate(time.Millisecond)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transcript(id, channel, seq, username, nickname, profile_picture, body, file_url,
			is_image, is_video, is_system, is_admin, sent_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), channel, seq, m.Username, m.Nickname, m.ProfilePicture, m.Message, m.FileURL,
		m.IsImage, m.IsVideo, m.IsSystem, m.IsAdmin, sentAt)
	return err
}
