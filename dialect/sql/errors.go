package sql

import (
	"errors"
	"strings"

	sqlite3 "modernc.org/sqlite/lib"
)

// errorCoder is implemented by *sqlite.Error. Codes are extended
// result codes.
type errorCoder interface {
	Code() int
}

// IsConstraintError reports whether err is a SQLite constraint violation.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[errorCoder](err); ok {
		return e.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// IsUniqueConstraintError reports whether err resulted from a unique
// or primary-key constraint violation.
func IsUniqueConstraintError(err error) bool {
	return hasCode(err, "UNIQUE constraint failed", sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

// IsForeignKeyConstraintError reports whether err resulted from a
// foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return hasCode(err, "FOREIGN KEY constraint failed", sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

// IsNotNullConstraintError reports whether err resulted from a
// not-null constraint violation.
func IsNotNullConstraintError(err error) bool {
	return hasCode(err, "NOT NULL constraint failed", sqlite3.SQLITE_CONSTRAINT_NOTNULL)
}

func hasCode(err error, msg string, codes ...int) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[errorCoder](err); ok {
		for _, c := range codes {
			if e.Code() == c {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), msg)
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
