package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-clinic-api/internal/model"
)

type accountFinder interface {
	FindByEmail(ctx context.Context, email string) (model.Account, error)
	FindByID(ctx context.Context, id string) (model.Account, error)
}

// PrincipalService resolves an identifier to exactly one account, trying the
// registered users store before the pre-registered store.
type PrincipalService struct {
	stores []accountFinder
}

func NewPrincipalService(users accountFinder, preRegistered accountFinder) *PrincipalService {
	return &PrincipalService{stores: []accountFinder{users, preRegistered}}
}

func (s *PrincipalService) ResolveBySubject(ctx context.Context, email string) (model.Account, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.Account{}, model.ErrAccountNotFound
	}

	return s.resolve(func(store accountFinder) (model.Account, error) {
		return store.FindByEmail(ctx, email)
	})
}

func (s *PrincipalService) ResolveByID(ctx context.Context, id string) (model.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Account{}, model.ErrAccountNotFound
	}

	return s.resolve(func(store accountFinder) (model.Account, error) {
		return store.FindByID(ctx, id)
	})
}

func (s *PrincipalService) resolve(lookup func(accountFinder) (model.Account, error)) (model.Account, error) {
	for _, store := range s.stores {
		account, err := lookup(store)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, model.ErrAccountNotFound) {
			return model.Account{}, fmt.Errorf("resolve principal: %w", err)
		}
	}

	return model.Account{}, model.ErrAccountNotFound
}
