package ledgerxgo

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer = errors.New("internal server error")

	// ErrOverCapacity is returned by the limit middleware when a request
	// cannot acquire a slot within its deadline.
	ErrOverCapacity = errors.New("server over capacity")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrNotFound struct {
	ID int64 `json:"id"`
}

func (e ErrNotFound) Error() string {
	return "record not found"
}

// ErrStore wraps a failure from the ledger store so callers can distinguish
// persistence faults from domain errors.
type ErrStore struct {
	Op  string
	Err error
}

func (e ErrStore) Error() string {
	return fmt.Sprintf("store %s: %s", e.Op, e.Err.Error())
}

func (e ErrStore) Unwrap() error {
	return e.Err
}
