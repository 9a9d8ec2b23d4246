package domain

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrReservedProfile = errors.New("profile name is reserved")
)
