package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"classmate/internal/apperror"
	"classmate/internal/repository"
)

// storeErr passes classified errors through and wraps anything else as a
// store failure for op.
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Store(err, op)
}

// lookupErr maps a missing row to NOT_FOUND with message.
func lookupErr(err error, message, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return storeErr(err, op)
}

// Column limits from the profiles and users tables.
const (
	maxEmailLength     = 255
	maxUsernameLength  = 100
	maxSchoolLength    = 255
	maxStudentIDLength = 100
)

// checkLength rejects a value longer than its column allows.
func checkLength(field string, v *string, limit int) error {
	if v != nil && utf8.RuneCountInString(*v) > limit {
		return apperror.Validation(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}
