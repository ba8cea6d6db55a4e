package errors

import "fmt"

var (
	ErrValidation = fmt.Errorf("validation error")
	ErrConflict   = fmt.Errorf("conflict")
	ErrNotFound   = fmt.Errorf("not found")
	ErrStorage    = fmt.Errorf("storage error")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)
