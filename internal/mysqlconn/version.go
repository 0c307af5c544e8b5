package mysqlconn

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ServerVersion represents a parsed MySQL version.
type ServerVersion struct {
	Raw           string // e.g. "8.0.35-27-Percona XtraDB Cluster"
	Major         int
	Minor         int
	Patch         int
	Flavor        string // "mysql", "percona", "percona-xtradb-cluster", "mariadb", "aurora-mysql"
	AuroraVersion string // e.g. "3.04.0" (empty for non-Aurora)
}

// String returns a human-readable version string.
func (v ServerVersion) String() string {
	if v.AuroraVersion != "" {
		return fmt.Sprintf("%d.%d (aurora-mysql %s)", v.Major, v.Minor, v.AuroraVersion)
	}
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

// AtLeast returns true if the server version is >= the given version.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// SupportsBackupLock returns true if LOCK INSTANCE FOR BACKUP is available.
// MySQL 8.0+ and Percona Server 5.7.17+ (the 5.7 case is approximated here
// as "any 5.7", since the Coordinator treats absence as best-effort anyway).
func (v ServerVersion) SupportsBackupLock() bool {
	return v.AtLeast(8, 0, 0) || (v.Major == 5 && v.Minor == 7)
}

// GetServerVersion queries and parses the MySQL server version.
func GetServerVersion(db *sql.DB) (ServerVersion, error) {
	var raw string
	if err := db.QueryRow("SELECT VERSION()").Scan(&raw); err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

var (
	auroraVersionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.mysql_aurora\.(\d+\.\d+\.\d+)`)
	versionRe       = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
)

// ParseVersion parses a MySQL version string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	if m := auroraVersionRe.FindStringSubmatch(raw); len(m) >= 4 {
		v.Major, _ = strconv.Atoi(m[1])
		v.Minor, _ = strconv.Atoi(m[2])
		v.Flavor = "aurora-mysql"
		v.AuroraVersion = m[3]
		return v, nil
	}

	m := versionRe.FindStringSubmatch(raw)
	if len(m) < 4 {
		return v, fmt.Errorf("could not parse version: %s", raw)
	}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona xtradb cluster"):
		v.Flavor = "percona-xtradb-cluster"
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}
	return v, nil
}

// GetVariableInt reads a MySQL global variable as an int64.
func GetVariableInt(db *sql.DB, name string) (int64, error) {
	var varName, value sql.NullString
	query := fmt.Sprintf("SHOW GLOBAL VARIABLES LIKE '%s'", strings.ReplaceAll(name, "_", "\\_"))
	if err := db.QueryRow(query).Scan(&varName, &value); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("querying variable %s: %w", name, err)
	}
	if !value.Valid || value.String == "" {
		return 0, nil
	}
	return strconv.ParseInt(value.String, 10, 64)
}
