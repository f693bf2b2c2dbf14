package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// sqlite extended result codes for constraint violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// Dialect captures the differences between the supported SQL engines: placeholder
// syntax, unique violation detection and the migrate URL scheme.
type Dialect struct {
	driver string
}

// NewDialect returns the dialect for a driver name.
func NewDialect(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return Dialect{driver: driver}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string {
	return d.driver
}

// Rebind rewrites "?" placeholders into the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InsertIgnore returns the statement prefix that turns a duplicate key into a no-op.
// The caller appends "table (cols) VALUES (...)" and, for postgres, the returned suffix.
func (d Dialect) InsertIgnore() (prefix string, suffix string) {
	switch d.driver {
	case DriverMySQL:
		return "INSERT IGNORE INTO", ""
	case DriverSQLite:
		return "INSERT OR IGNORE INTO", ""
	default:
		return "INSERT INTO", " ON CONFLICT DO NOTHING"
	}
}

// IsUniqueViolation reports whether err is a unique or primary key constraint violation.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	var sqliteErr interface{ Code() int }
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") ||
		strings.Contains(errMsg, "duplicate entry") ||
		strings.Contains(errMsg, "unique constraint")
}

// MigrationURL converts a connection string into the URL golang-migrate expects.
func (d Dialect) MigrationURL(connectionString string) string {
	switch d.driver {
	case DriverSQLite:
		if strings.HasPrefix(connectionString, "sqlite://") {
			return connectionString
		}
		return "sqlite://" + strings.TrimPrefix(connectionString, "file:")
	case DriverMySQL:
		if strings.HasPrefix(connectionString, "mysql://") {
			return connectionString
		}
		return "mysql://" + connectionString
	default:
		return connectionString
	}
}
