package repository

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateName     = errors.New("account name already exists")
	ErrAccountReferenced = errors.New("account is referenced by stored emails")
	ErrInvalidInput      = errors.New("invalid input parameters")
)
