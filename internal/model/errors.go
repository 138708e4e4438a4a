package model

import "errors"

var (
	// Account related errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrWeakPassword         = errors.New("password too short")

	// Patient related errors
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyLinked = errors.New("patient already linked to an account")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)
