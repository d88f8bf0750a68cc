package database

import (
	"errors"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/lib/pq"
)

const (
	codeExclusionViolation   = "23P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isRetryable(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// translate maps constraint violations onto domain errors. The in-transaction
// overlap scan normally reports conflicts first; the exclusion constraint is
// the backstop and does not name the blocking row.
func translate(err error, driverID string) error {
	if err == nil {
		return nil
	}
	if pqCode(err) == codeExclusionViolation {
		return &entity.TimeConflictError{DriverID: driverID}
	}
	return err
}
