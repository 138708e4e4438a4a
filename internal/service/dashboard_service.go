package service

import (
	"context"
	"fmt"

	"go-clinic-api/internal/model"
)

type counter interface {
	Count(ctx context.Context) (int, error)
}

type DashboardService struct {
	users         counter
	preRegistered counter
	patients      counter
}

func NewDashboardService(users counter, preRegistered counter, patients counter) *DashboardService {
	return &DashboardService{users: users, preRegistered: preRegistered, patients: patients}
}

func (s *DashboardService) Counts(ctx context.Context) (model.DashboardCounts, error) {
	var counts model.DashboardCounts
	var err error

	if counts.Users, err = s.users.Count(ctx); err != nil {
		return model.DashboardCounts{}, fmt.Errorf("count users: %w", err)
	}
	if counts.PreRegistered, err = s.preRegistered.Count(ctx); err != nil {
		return model.DashboardCounts{}, fmt.Errorf("count pre-registered users: %w", err)
	}
	if counts.Patients, err = s.patients.Count(ctx); err != nil {
		return model.DashboardCounts{}, fmt.Errorf("count patients: %w", err)
	}

	return counts, nil
}
