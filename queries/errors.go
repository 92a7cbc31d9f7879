package queries

import (
	"github.com/jackc/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// postgres error codes handled by the repository
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// classify maps database errors to the domain errors of the network
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		switch pgerr.Code {
		case pgUniqueViolation:
			return model.ErrDuplicateChild
		case pgForeignKeyViolation, pgCheckViolation:
			return model.ErrInvalidParent
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return errors.Wrap(model.ErrWriteConflict, pgerr.Message)
		}
	}
	return err
}
