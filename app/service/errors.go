package service

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoUsableRecords    = errors.New("erp returned records but none could be normalized")
	ErrInvalidFallbackSet = errors.New("invalid fallback plans")
)
