package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PatientKind string

const (
	PatientKindRegular PatientKind = "patient"
	PatientKindTemp    PatientKind = "temp_patient"
)

var ErrInvalidPatientRef = errors.New("appointment must reference exactly one of patient or temp patient")

// PatientRef points at either a registered patient or a walk-in temp
// patient. The zero value references nothing and is rejected everywhere.
type PatientRef struct {
	kind PatientKind
	id   uuid.UUID
}

func RegularPatient(id uuid.UUID) PatientRef {
	return PatientRef{kind: PatientKindRegular, id: id}
}

func TempPatientRef(id uuid.UUID) PatientRef {
	return PatientRef{kind: PatientKindTemp, id: id}
}

// PatientRefFromColumns maps the two nullable foreign keys of a stored row.
func PatientRefFromColumns(patientID, tempPatientID *uuid.UUID) (PatientRef, error) {
	switch {
	case patientID != nil && tempPatientID == nil:
		return RegularPatient(*patientID), nil
	case patientID == nil && tempPatientID != nil:
		return TempPatientRef(*tempPatientID), nil
	}
	return PatientRef{}, ErrInvalidPatientRef
}

func (r PatientRef) Kind() PatientKind { return r.kind }
func (r PatientRef) ID() uuid.UUID     { return r.id }
func (r PatientRef) IsTemp() bool      { return r.kind == PatientKindTemp }

func (r PatientRef) Valid() bool {
	return (r.kind == PatientKindRegular || r.kind == PatientKindTemp) && r.id != uuid.Nil
}

// Columns returns the (patient_id, temp_patient_id) pair for storage.
func (r PatientRef) Columns() (patientID, tempPatientID *uuid.UUID) {
	id := r.id
	if r.IsTemp() {
		return nil, &id
	}
	return &id, nil
}

func (r PatientRef) String() string {
	return fmt.Sprintf("%s:%s", r.kind, r.id)
}

type patientRefJSON struct {
	Kind PatientKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

func (r PatientRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(patientRefJSON{Kind: r.kind, ID: r.id})
}

func (r *PatientRef) UnmarshalJSON(b []byte) error {
	var raw patientRefJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ref := PatientRef{kind: raw.Kind, id: raw.ID}
	if !ref.Valid() {
		return ErrInvalidPatientRef
	}
	*r = ref
	return nil
}

// TempPatient is a walk-in identity used until registration completes.
type TempPatient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contact is whatever the notifier needs to reach a person.
type Contact struct {
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email,omitempty"`
	Phone string `db:"phone" json:"phone,omitempty"`
}

func (c Contact) Reachable() bool {
	return c.Email != "" || c.Phone != ""
}
