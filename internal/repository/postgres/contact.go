package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

type contactRepository struct {
	BaseRepository
}

func NewContactRepository(base BaseRepository) repository.ContactRepository {
	return &contactRepository{base}
}

func (r *contactRepository) PatientContact(ctx context.Context, ref model.PatientRef) (*model.Contact, error) {
	if !ref.Valid() {
		return nil, model.ErrInvalidPatientRef
	}

	query := `
		SELECT name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone
		FROM patients WHERE id = $1
	`
	if ref.IsTemp() {
		query = `
			SELECT name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone
			FROM temp_patients WHERE id = $1
		`
	}

	var c model.Contact
	if err := r.db.GetContext(ctx, &c, query, ref.ID()); err != nil {
		if err = notFound(err); errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get contact for %s: %w", ref, err)
	}
	return &c, nil
}

func (r *contactRepository) OverdueDigestSubscribers(ctx context.Context) ([]*model.StaffMember, error) {
	query := `
		SELECT id, name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone
		FROM staff
		WHERE notify_overdue AND active
		ORDER BY name
	`
	var staff []*model.StaffMember
	if err := r.db.SelectContext(ctx, &staff, query); err != nil {
		return nil, fmt.Errorf("failed to list overdue digest subscribers: %w", err)
	}
	return staff, nil
}
