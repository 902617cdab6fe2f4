package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"ledgerline-backend/internal/models"
)

type RegisterInput struct {
	BusinessName string
	UserName     string
	Email        string
	PasswordHash string
}

// RegisterOrganization creates the organization and its first user in a single
// transaction. The first user is stored with role "admin". A failure on the
// user insert rolls back the organization insert, so no orphaned organization
// row can remain.
func (s *Storage) RegisterOrganization(ctx context.Context, input RegisterInput) (*models.Organization, *models.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var org models.Organization
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (id, name)
		VALUES ($1, $2)
		RETURNING id, name, created_at
	`, uuid.New().String(), input.BusinessName).
		Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrOrgNameTaken
		}
		return nil, nil, err
	}

	var user models.User
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, organization_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, 'admin')
		RETURNING id, organization_id, name, email, password_hash, role, created_at
	`, uuid.New().String(), org.ID, input.UserName, input.Email, input.PasswordHash).
		Scan(&user.ID, &user.OrgID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	return &org, &user, nil
}

func (s *Storage) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, created_at
		FROM organizations
		WHERE id = $1
	`

	var org models.Organization
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}
