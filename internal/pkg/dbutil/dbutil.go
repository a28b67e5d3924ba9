package dbutil

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Rebind converts the MySQL-style placeholders produced by gendry's builder
// into the $N form Postgres expects.
func Rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
