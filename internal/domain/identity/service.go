package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxclinic/vaxclinic/internal/config"
	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
	"github.com/vaxclinic/vaxclinic/internal/platform/auth"
	"github.com/vaxclinic/vaxclinic/internal/platform/db"
	"github.com/vaxclinic/vaxclinic/internal/platform/validate"
)

type RegisterPatientRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,phone"`
	BirthDate string `json:"birth_date" validate:"omitempty,date"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	Address   string `json:"address" validate:"omitempty,max=500"`
}

// ProfileRequest completes or edits a patient profile for an identity that
// already exists.
type ProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,phone"`
	BirthDate string `json:"birth_date" validate:"omitempty,date"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	Address   string `json:"address" validate:"omitempty,max=500"`
}

// CompleteProfileRequest is sent by a signed-in identity with no profile.
type CompleteProfileRequest struct {
	Email string `json:"email" validate:"required,email"`
	ProfileRequest
}

type OnboardVaccinatorRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	Name          string `json:"name" validate:"required,max=200"`
	LicenseNumber string `json:"license_number" validate:"required,max=50"`
	Department    string `json:"department" validate:"omitempty,max=100"`
	Role          string `json:"role" validate:"omitempty,oneof=doctor admin"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Patient    *Patient      `json:"patient,omitempty"`
	Vaccinator *Vaccinator   `json:"vaccinator,omitempty"`
	Session    *auth.Session `json:"session,omitempty"`
	Resolution Resolution    `json:"resolution"`
}

type LoginResult struct {
	Session    *auth.Session `json:"session"`
	Resolution Resolution    `json:"resolution"`
}

type Service struct {
	patients    PatientRepository
	vaccinators VaccinatorRepository
	accounts    AccountRepository
	provider    auth.Provider
	tx          db.TxRunner
	resolver    *Resolver
	clinic      config.Clinic
	logger      zerolog.Logger
}

func NewService(
	patients PatientRepository,
	vaccinators VaccinatorRepository,
	accounts AccountRepository,
	provider auth.Provider,
	tx db.TxRunner,
	clinic config.Clinic,
	logger zerolog.Logger,
) *Service {
	return &Service{
		patients:    patients,
		vaccinators: vaccinators,
		accounts:    accounts,
		provider:    provider,
		tx:          tx,
		resolver:    NewResolver(accounts),
		clinic:      clinic,
		logger:      logger.With().Str("component", "identity").Logger(),
	}
}

// Resolver exposes the role resolver for the session middleware.
func (s *Service) Resolver() *Resolver { return s.resolver }

// -- Registration --

// RegisterPatient creates the identity, then the patient profile and its
// account row in one transaction. If the database step fails the identity
// is deleted again.
func (s *Service) RegisterPatient(ctx context.Context, req RegisterPatientRequest) (*Registration, error) {
	p, err := patientFromProfile(ProfileRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
		Address:   req.Address,
	})
	if err != nil {
		return nil, err
	}
	p.Email = normalizeEmail(req.Email)

	comp := newCompensator(s.logger)
	ident, err := s.provider.SignUp(ctx, p.Email, req.Password)
	if err != nil {
		return nil, err
	}
	comp.add("delete identity", func(ctx context.Context) error {
		return s.provider.DeleteIdentity(ctx, ident.ID)
	})

	p.IdentityID = ident.ID
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.createPatientWithAccount(ctx, p)
	}); err != nil {
		comp.rollback(ctx)
		return nil, err
	}

	reg := &Registration{Patient: p, Resolution: resolutionFor(KindPatient, "", p.ID)}
	reg.Session = s.trySignIn(ctx, p.Email, req.Password)
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient registered")
	return reg, nil
}

// CreatePatientProfile attaches a patient profile to an existing identity
// that resolved to RoleNone.
func (s *Service) CreatePatientProfile(ctx context.Context, identityID, email string, req ProfileRequest) (*Patient, error) {
	p, err := patientFromProfile(req)
	if err != nil {
		return nil, err
	}
	p.IdentityID = identityID
	p.Email = normalizeEmail(email)

	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.createPatientWithAccount(ctx, p)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) createPatientWithAccount(ctx context.Context, p *Patient) error {
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	return s.accounts.Create(ctx, &Account{IdentityID: p.IdentityID, Kind: KindPatient, RecordID: p.ID})
}

// OnboardVaccinator registers a staff member. Department and role fall back
// to the clinic defaults.
func (s *Service) OnboardVaccinator(ctx context.Context, req OnboardVaccinatorRequest) (*Registration, error) {
	v := &Vaccinator{
		Name:          strings.TrimSpace(req.Name),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		Department:    strings.TrimSpace(req.Department),
		Role:          req.Role,
		Status:        VaccinatorActive,
		Email:         normalizeEmail(req.Email),
		Phone:         optional(req.Phone),
	}
	if v.Department == "" {
		v.Department = s.clinic.Department
	}
	if v.Role == "" {
		v.Role = s.clinic.VaccinatorRole
	}
	if err := checkVaccinatorRole(v.Role); err != nil {
		return nil, err
	}

	comp := newCompensator(s.logger)
	ident, err := s.provider.SignUp(ctx, v.Email, req.Password)
	if err != nil {
		return nil, err
	}
	comp.add("delete identity", func(ctx context.Context) error {
		return s.provider.DeleteIdentity(ctx, ident.ID)
	})

	v.IdentityID = ident.ID
	if err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.vaccinators.Create(ctx, v); err != nil {
			return err
		}
		return s.accounts.Create(ctx, &Account{IdentityID: v.IdentityID, Kind: KindVaccinator, RecordID: v.ID})
	}); err != nil {
		comp.rollback(ctx)
		return nil, err
	}

	s.logger.Info().Str("vaccinator_id", v.ID.String()).Str("role", v.Role).Msg("vaccinator onboarded")
	return &Registration{Vaccinator: v, Resolution: resolutionFor(KindVaccinator, v.Role, v.ID)}, nil
}

// -- Sessions --

// Login signs in and resolves the role. A failed role lookup does not fail
// the login: the resolution is RoleUnknown with no redirect.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	sess, err := s.provider.SignIn(ctx, normalizeEmail(req.Email), req.Password)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, sess.IdentityID)
	if err != nil {
		s.logger.Warn().Err(err).Str("identity_id", sess.IdentityID).Msg("role resolution failed at login")
	}
	return &LoginResult{Session: sess, Resolution: res}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.provider.SignOut(ctx, token)
}

func (s *Service) Resolve(ctx context.Context, identityID string) (Resolution, error) {
	return s.resolver.Resolve(ctx, identityID)
}

func (s *Service) trySignIn(ctx context.Context, email, password string) *auth.Session {
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sign in after registration failed")
		return nil
	}
	return sess
}

// -- Patients --

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req ProfileRequest) (*Patient, error) {
	current, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patientFromProfile(req)
	if err != nil {
		return nil, err
	}
	current.FirstName = next.FirstName
	current.LastName = next.LastName
	current.Phone = next.Phone
	current.BirthDate = next.BirthDate
	current.Gender = next.Gender
	current.Address = next.Address
	if err := s.patients.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// PatientExists reports false, without error, for unknown ids.
func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.patients.GetByID(ctx, id)
	if errors.Is(err, ErrPatientNotFound) {
		return false, nil
	}
	return err == nil, err
}

// -- Vaccinators --

func (s *Service) GetVaccinator(ctx context.Context, id uuid.UUID) (*Vaccinator, error) {
	return s.vaccinators.GetByID(ctx, id)
}

func (s *Service) ListVaccinators(ctx context.Context, f VaccinatorFilter, limit, offset int) ([]*Vaccinator, int, error) {
	return s.vaccinators.List(ctx, f, limit, offset)
}

// VaccinatorStatus returns the vaccinator's status or ErrVaccinatorNotFound.
func (s *Service) VaccinatorStatus(ctx context.Context, id uuid.UUID) (string, error) {
	v, err := s.vaccinators.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}

func (s *Service) SetVaccinatorStatus(ctx context.Context, id uuid.UUID, status string) (*Vaccinator, error) {
	if status != VaccinatorActive && status != VaccinatorInactive {
		return nil, apperr.Field("status", "must be one of: active inactive")
	}
	if err := s.vaccinators.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.Info().Str("vaccinator_id", id.String()).Str("status", status).Msg("vaccinator status changed")
	return s.vaccinators.GetByID(ctx, id)
}

func (s *Service) SetVaccinatorRole(ctx context.Context, id uuid.UUID, role string) (*Vaccinator, error) {
	if err := checkVaccinatorRole(role); err != nil {
		return nil, err
	}
	if err := s.vaccinators.SetRole(ctx, id, role); err != nil {
		return nil, err
	}
	s.logger.Info().Str("vaccinator_id", id.String()).Str("role", role).Msg("vaccinator role changed")
	return s.vaccinators.GetByID(ctx, id)
}

// -- helpers --

func resolutionFor(kind, vaccinatorRole string, recordID uuid.UUID) Resolution {
	role := RoleFor(&Account{Kind: kind, VaccinatorRole: vaccinatorRole})
	return Resolution{Role: role, RecordID: &recordID, Redirect: RedirectFor(role)}
}

func patientFromProfile(req ProfileRequest) (*Patient, error) {
	p := &Patient{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Gender:    optional(req.Gender),
		Address:   optional(req.Address),
	}
	fields := map[string]string{}
	if p.FirstName == "" {
		fields["first_name"] = "is required"
	}
	if p.LastName == "" {
		fields["last_name"] = "is required"
	}
	if p.Phone == "" {
		fields["phone"] = "is required"
	}
	if req.BirthDate != "" {
		bd, err := time.Parse(validate.DateLayout, req.BirthDate)
		switch {
		case err != nil:
			fields["birth_date"] = "must be a date in YYYY-MM-DD format"
		case bd.After(time.Now()):
			fields["birth_date"] = "must not be in the future"
		default:
			p.BirthDate = &bd
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("validation failed", fields)
	}
	return p, nil
}

func checkVaccinatorRole(role string) error {
	if role != VaccinatorRoleDoctor && role != VaccinatorRoleAdmin {
		return apperr.Field("role", "must be one of: doctor admin")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
