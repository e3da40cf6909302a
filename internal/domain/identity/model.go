package identity

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	IdentityID string     `db:"identity_id" json:"identity_id"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	Email      string     `db:"email" json:"email"`
	Phone      string     `db:"phone" json:"phone"`
	BirthDate  *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender     *string    `db:"gender" json:"gender,omitempty"`
	Address    *string    `db:"address" json:"address,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

const (
	VaccinatorActive   = "active"
	VaccinatorInactive = "inactive"

	VaccinatorRoleDoctor = "doctor"
	VaccinatorRoleAdmin  = "admin"
)

type Vaccinator struct {
	ID            uuid.UUID `db:"id" json:"id"`
	IdentityID    string    `db:"identity_id" json:"identity_id"`
	Name          string    `db:"name" json:"name"`
	LicenseNumber string    `db:"license_number" json:"license_number"`
	Department    string    `db:"department" json:"department"`
	Role          string    `db:"role" json:"role"`
	Status        string    `db:"status" json:"status"`
	Email         string    `db:"email" json:"email"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (v *Vaccinator) IsActive() bool { return v.Status == VaccinatorActive }

// Account kinds.
const (
	KindPatient    = "patient"
	KindVaccinator = "vaccinator"
)

// Account maps an identity to exactly one profile record. VaccinatorRole is
// filled from the vaccinator row on lookup and is empty for patients.
type Account struct {
	IdentityID     string    `db:"identity_id" json:"identity_id"`
	Kind           string    `db:"kind" json:"kind"`
	RecordID       uuid.UUID `db:"record_id" json:"record_id"`
	VaccinatorRole string    `db:"-" json:"-"`
}

// Resolved roles beyond the three authenticated ones in the auth package.
const (
	RoleNone    = "none"
	RoleUnknown = "unknown"
)

const (
	RedirectPatient  = "/patient/dashboard"
	RedirectDoctor   = "/doctor/dashboard"
	RedirectAdmin    = "/admin/dashboard"
	RedirectRegister = "/register"
)

// Resolution is the outcome of role resolution for one identity.
type Resolution struct {
	Role     string     `json:"role"`
	RecordID *uuid.UUID `json:"record_id,omitempty"`
	Redirect string     `json:"redirect"`
}

// VaccinatorFilter narrows vaccinator listings. Empty fields match all.
type VaccinatorFilter struct {
	Status     string
	Role       string
	Department string
}
