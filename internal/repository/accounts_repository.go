package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/models"
)

// AccountsRepository reads accounts. Accounts are provisioned elsewhere.
type AccountsRepository struct {
	db *pgxpool.Pool
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *pgxpool.Pool) *AccountsRepository {
	return &AccountsRepository{db: db}
}

// FindByProfessionalID returns the account linked to an external professional.
func (r *AccountsRepository) FindByProfessionalID(ctx context.Context, professionalID string) (*models.Account, error) {
	if professionalID == "" {
		return nil, apperrors.NewNotFoundError("account", "")
	}

	query := `
		SELECT id, name, email, external_professional_id, created_at, updated_at
		FROM accounts
		WHERE external_professional_id = $1
	`

	var account models.Account

	err := r.db.QueryRow(ctx, query, professionalID).Scan(
		&account.ID, &account.Name, &account.Email, &account.ExternalProfessionalID,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("account", "")
		}

		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return &account, nil
}
