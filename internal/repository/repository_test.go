package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/agendopro/webhook/internal/testhelper"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	db := testhelper.SetupTestDB(t)
	testhelper.Truncate(t, db, "webhook_logs", "appointments", "accounts")

	return db
}

func seedAccount(t *testing.T, db *pgxpool.Pool, professionalID string) uuid.UUID {
	t.Helper()

	var id uuid.UUID

	err := db.QueryRow(context.Background(),
		`INSERT INTO accounts (name, external_professional_id) VALUES ($1, $2) RETURNING id`,
		"Clinic "+professionalID, professionalID,
	).Scan(&id)
	require.NoError(t, err)

	return id
}

func ptr[T any](v T) *T {
	return &v
}

var (
	baseTime   = time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)
	rawPayload = json.RawMessage(`{"event":"appointment.created","data":{"id":"ext-1"}}`)
)
