package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-clinic-api/internal/model"
)

// PreRegisteredRepository stores accounts created through self pre-registration.
type PreRegisteredRepository struct {
	accountTable
}

func NewPreRegisteredRepository(pool *pgxpool.Pool) *PreRegisteredRepository {
	return &PreRegisteredRepository{accountTable{pool: pool, table: "pre_registered_users", kind: model.AccountKindPreRegistered}}
}

// LinkPatient ties the account to a patient record. The partial unique index
// on patient_id rejects a record already linked to another account.
func (r *PreRegisteredRepository) LinkPatient(ctx context.Context, id string, patientID string) error {
	if !validID(id) {
		return model.ErrAccountNotFound
	}
	if !validID(patientID) {
		return model.ErrPatientNotFound
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE pre_registered_users SET patient_id = $2, updated_at = $3 WHERE id = $1`,
		id, patientID, time.Now().UTC())
	if isUniqueViolation(err) {
		return model.ErrPatientAlreadyLinked
	}
	if err != nil {
		return fmt.Errorf("link patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}
