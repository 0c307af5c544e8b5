// Package config loads dump job configuration from viper: command-line
// flags layered over an optional YAML file under connections.default/
// defaults, the same two-tier shape the teacher's cmd/config.go binds
// (spec.md §8, ambient configuration).
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/nethalo/dbdump/internal/dumpmodel"
	"github.com/nethalo/dbdump/internal/mysqlconn"
)

// Defaults returns the Options a job uses unless overridden by flags or
// config file.
func Defaults() dumpmodel.Options {
	return dumpmodel.Options{
		Threads:       4,
		BytesPerChunk: 64 << 20, // 64 MiB
		Compression:   dumpmodel.CompressionGzip,
		Dialect:       dumpmodel.DialectCSV,
		Charset:       "utf8mb4",
		Consistent:    true,
		DumpDDL:       true,
		DumpData:      true,
	}
}

// LoadOptions builds dumpmodel.Options from v, starting from Defaults()
// and overriding every key v has set (by flag binding or config file).
// v.IsSet distinguishes "flag left at its zero value" from "never set",
// the way viper.BindPFlag's callers in the teacher rely on
// pflag.Changed checks before falling back to a config file value.
func LoadOptions(v *viper.Viper) dumpmodel.Options {
	o := Defaults()

	if v.IsSet("output") {
		o.OutputURL = v.GetString("output")
	}
	if v.IsSet("threads") {
		o.Threads = v.GetInt("threads")
	}
	if v.IsSet("bytes-per-chunk") {
		o.BytesPerChunk = v.GetInt64("bytes-per-chunk")
	}
	if v.IsSet("row-index") {
		o.RowIndex = v.GetBool("row-index")
	}
	if v.IsSet("compression") {
		o.Compression = dumpmodel.Compression(v.GetString("compression"))
	}
	if v.IsSet("dialect") {
		o.Dialect = dumpmodel.Dialect(v.GetString("dialect"))
	}
	if v.IsSet("charset") {
		o.Charset = v.GetString("charset")
	}
	if v.IsSet("utc") {
		o.UTCTimeZone = v.GetBool("utc")
	}
	if v.IsSet("consistent") {
		o.Consistent = v.GetBool("consistent")
	}
	if v.IsSet("dump-ddl") {
		o.DumpDDL = v.GetBool("dump-ddl")
	}
	if v.IsSet("dump-data") {
		o.DumpData = v.GetBool("dump-data")
	}
	if v.IsSet("dump-users") {
		o.DumpUsers = v.GetBool("dump-users")
	}
	if v.IsSet("dump-events") {
		o.DumpEvents = v.GetBool("dump-events")
	}
	if v.IsSet("dump-routines") {
		o.DumpRoutines = v.GetBool("dump-routines")
	}
	if v.IsSet("dump-triggers") {
		o.DumpTriggers = v.GetBool("dump-triggers")
	}
	if v.IsSet("include-schemas") {
		o.IncludeSchemas = splitList(v.GetString("include-schemas"))
	}
	if v.IsSet("exclude-schemas") {
		o.ExcludeSchemas = splitList(v.GetString("exclude-schemas"))
	}
	if v.IsSet("include-tables") {
		o.IncludeTables = splitList(v.GetString("include-tables"))
	}
	if v.IsSet("exclude-tables") {
		o.ExcludeTables = splitList(v.GetString("exclude-tables"))
	}
	if v.IsSet("include-users") {
		o.IncludeUsers = splitList(v.GetString("include-users"))
	}
	if v.IsSet("exclude-users") {
		o.ExcludeUsers = splitList(v.GetString("exclude-users"))
	}
	if v.IsSet("rate-limit") {
		o.RateLimitBytesPerSec = v.GetInt64("rate-limit")
	}
	if v.IsSet("verbose") {
		o.Verbose = v.GetBool("verbose")
	}
	if v.IsSet("job-id") {
		o.JobID = v.GetString("job-id")
	}
	return o
}

// LoadConnection builds a mysqlconn.Config from v, falling back to
// connections.default.* keys the way cmd/config.go's YAML layout names
// them when the matching flag was never set.
func LoadConnection(v *viper.Viper) mysqlconn.Config {
	return mysqlconn.Config{
		Host:     stringOr(v, "host", "connections.default.host", "127.0.0.1"),
		Port:     intOr(v, "port", "connections.default.port", 3306),
		User:     stringOr(v, "user", "connections.default.user", ""),
		Password: v.GetString("password"),
		Database: stringOr(v, "database", "connections.default.database", ""),
		Socket:   v.GetString("socket"),
		TLSMode:  v.GetString("tls"),
		TLSCA:    v.GetString("tls-ca"),
	}
}

func stringOr(v *viper.Viper, key, fallbackKey, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	if v.IsSet(fallbackKey) {
		return v.GetString(fallbackKey)
	}
	return def
}

func intOr(v *viper.Viper, key, fallbackKey string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	if v.IsSet(fallbackKey) {
		return v.GetInt(fallbackKey)
	}
	return def
}

// splitList parses a comma-separated flag value into a pattern list,
// trimming whitespace and dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
