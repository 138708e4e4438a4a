package service

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-clinic-api/internal/model"
	"go-clinic-api/pkg/apierror"
)

type patientStore interface {
	FindByID(ctx context.Context, id string) (model.Patient, error)
	Create(ctx context.Context, patient model.Patient) error
	List(ctx context.Context, limit int, offset int) ([]model.Patient, error)
	Count(ctx context.Context) (int, error)
}

type PatientService struct {
	patients patientStore
}

func NewPatientService(patients patientStore) *PatientService {
	return &PatientService{patients: patients}
}

func (s *PatientService) Create(ctx context.Context, req model.CreatePatientRequest) (model.Patient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Patient{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "name is required", "name", http.StatusBadRequest)
	}

	email := model.NormalizeEmail(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return model.Patient{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid email", "email", http.StatusBadRequest)
		}
	}

	now := time.Now().UTC()
	if req.BirthDate != nil && req.BirthDate.After(now) {
		return model.Patient{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "birth date cannot be in the future", "birth_date", http.StatusBadRequest)
	}

	patient := model.Patient{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		BirthDate: req.BirthDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.patients.Create(ctx, patient); err != nil {
		return model.Patient{}, err
	}

	return patient, nil
}

func (s *PatientService) Get(ctx context.Context, id string) (model.Patient, error) {
	return s.patients.FindByID(ctx, strings.TrimSpace(id))
}

func (s *PatientService) List(ctx context.Context, page int, limit int) ([]model.Patient, model.Meta, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.patients.Count(ctx)
	if err != nil {
		return nil, model.Meta{}, err
	}

	patients, err := s.patients.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, err
	}

	return patients, model.NewMeta(page, limit, total), nil
}
