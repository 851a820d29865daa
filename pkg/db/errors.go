package db

import (
	"strings"

	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation. Postgres errors are
// matched on SQLSTATE and, when constraintName is set, on the constraint. sqlite only
// surfaces a message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg := pkgerrors.PGDetailsOf(err); pg != nil {
		if pg.Code != pkgerrors.PGUniqueViolation {
			return false
		}
		return constraintName == "" || pg.Constraint == constraintName
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
