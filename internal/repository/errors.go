package repository

import (
	"errors"

	"mintoons/internal/database"
)

// ErrDuplicate is returned when an insert hits a unique index
var ErrDuplicate = errors.New("duplicate record")

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// mapError turns driver unique violations into ErrDuplicate
func mapError(q database.DBTX, err error) error {
	if err != nil && q.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func pageOffset(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
