package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
)

func TestContactRepository_PatientContact(t *testing.T) {
	contactColumns := []string{"name", "email", "phone"}

	tests := []struct {
		name  string
		ref   model.PatientRef
		table string
	}{
		{"registered patient", model.RegularPatient(uuid.New()), "FROM patients WHERE id = $1"},
		{"temp patient", model.TempPatientRef(uuid.New()), "FROM temp_patients WHERE id = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			repo := NewContactRepository(base)

			mock.ExpectQuery(regexp.QuoteMeta(tt.table)).
				WithArgs(tt.ref.ID()).
				WillReturnRows(sqlmock.NewRows(contactColumns).AddRow("Asha", "", "+910000000001"))

			c, err := repo.PatientContact(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, model.Contact{Name: "Asha", Phone: "+910000000001"}, *c)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unknown patient", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewContactRepository(base)

		mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE id = $1")).
			WillReturnRows(sqlmock.NewRows(contactColumns))

		_, err := repo.PatientContact(context.Background(), model.RegularPatient(uuid.New()))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("invalid reference", func(t *testing.T) {
		base, mock := newMockBase(t)
		repo := NewContactRepository(base)

		_, err := repo.PatientContact(context.Background(), model.PatientRef{})
		assert.ErrorIs(t, err, model.ErrInvalidPatientRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestContactRepository_OverdueDigestSubscribers(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewContactRepository(base)
	deskID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff") + `\s+` + regexp.QuoteMeta("WHERE notify_overdue AND active")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone"}).
			AddRow(deskID.String(), "Front desk", "desk@clinic.test", ""))

	staff, err := repo.OverdueDigestSubscribers(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, deskID, staff[0].ID)
	assert.Equal(t, "desk@clinic.test", staff[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
