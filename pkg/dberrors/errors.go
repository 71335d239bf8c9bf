package dberrors

import "errors"

var (
	ErrNotFound        = errors.New("lsmdb: not found")
	ErrClosed          = errors.New("lsmdb: closed")
	ErrInvalidArgument = errors.New("lsmdb: invalid argument")
	ErrCountMismatch   = errors.New("lsmdb: batch count mismatch")
)
