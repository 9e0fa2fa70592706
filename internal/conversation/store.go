// Package conversation persists WhatsApp chat history per tenant and phone.
// Each tenant writes under its own history key so shared infrastructure
// never mixes clinics.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

// Message roles as stored. Admin messages are dashboard operators writing
// through the clinic's number.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAdmin     = "admin"
)

// Message is one turn of a patient conversation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PatientThread summarizes one phone's conversation for the inbox list.
type PatientThread struct {
	Phone         string    `json:"phone"`
	MessageCount  int       `json:"messageCount"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	LastPreview   string    `json:"lastPreview"`
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes conversation history in PostgreSQL.
type Store struct {
	pool querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithExec(exec querier) *Store {
	if exec == nil {
		panic("conversation: exec required")
	}
	return &Store{pool: exec}
}

// Append stores one message and returns its id.
func (s *Store) Append(ctx context.Context, t tenancy.Tenant, phone, role, content string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO conversation_messages (id, history_key, phone, role, content)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, id, t.HistoryKey, phone, role, content); err != nil {
		return uuid.Nil, fmt.Errorf("conversation: append message: %w", err)
	}
	return id, nil
}

// History returns every stored turn of one phone, oldest first.
func (s *Store) History(ctx context.Context, t tenancy.Tenant, phone string) ([]Message, error) {
	query := `
		SELECT id, phone, role, content, created_at
		FROM conversation_messages
		WHERE history_key = $1 AND phone = $2
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, t.HistoryKey, phone)
	if err != nil {
		return nil, fmt.Errorf("conversation: fetch history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Phone, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListThreads returns one summary row per phone, most recent first.
func (s *Store) ListThreads(ctx context.Context, t tenancy.Tenant) ([]PatientThread, error) {
	query := `
		SELECT phone,
		       count(*) AS message_count,
		       max(created_at) AS last_message_at,
		       (array_agg(content ORDER BY created_at DESC))[1] AS last_preview
		FROM conversation_messages
		WHERE history_key = $1
		GROUP BY phone
		ORDER BY last_message_at DESC
	`
	rows, err := s.pool.Query(ctx, query, t.HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("conversation: list threads: %w", err)
	}
	defer rows.Close()

	var threads []PatientThread
	for rows.Next() {
		var th PatientThread
		if err := rows.Scan(&th.Phone, &th.MessageCount, &th.LastMessageAt, &th.LastPreview); err != nil {
			return nil, fmt.Errorf("conversation: scan thread: %w", err)
		}
		threads = append(threads, th)
	}
	return threads, rows.Err()
}

// MessageCount returns how many turns one phone has stored.
func (s *Store) MessageCount(ctx context.Context, t tenancy.Tenant, phone string) (int, error) {
	query := `SELECT count(*) FROM conversation_messages WHERE history_key = $1 AND phone = $2`
	var n int
	if err := s.pool.QueryRow(ctx, query, t.HistoryKey, phone).Scan(&n); err != nil {
		return 0, fmt.Errorf("conversation: count messages: %w", err)
	}
	return n, nil
}
