package service

import "errors"

var (
	ErrNoSession   = errors.New("no active session")
	ErrUnknownKind = errors.New("unknown kind")
	ErrUnknownItem = errors.New("unknown item")
)
