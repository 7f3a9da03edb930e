package store

import (
	"fmt"
	"net/url"
	"strings"
)

// WithPassword returns dsn with its password replaced by password. Postgres
// URLs (postgres:// or postgresql://) get the password in the userinfo;
// keyword/value DSNs get a password= pair appended. SQLite DSNs carry no
// password and are returned unchanged.
func WithPassword(driver, dsn, password string) (string, error) {
	if driver != driverPostgres || password == "" {
		return dsn, nil
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing database url: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return strings.TrimSpace(dsn) + " password='" + escaped + "'", nil
}
