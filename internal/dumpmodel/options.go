// Package dumpmodel holds the types shared across the dumper's packages:
// job options, the instance cache, tasks, and key ranges. Concentrating
// them here means tasks carry schema/table names and indexes into the
// cache rather than pointers into it, so nothing depends on the cache's
// internal pointer graph — only on its lifetime (see DESIGN.md, "arena
// plus index").
package dumpmodel

import (
	"fmt"
	"path"

	"github.com/nethalo/dbdump/internal/dumperrors"
	"github.com/nethalo/dbdump/internal/mysqlconn"
)

// Compression names the codec a Writer wraps its sink with.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
	CompressionSnappy Compression = "snappy"
)

// Dialect names the row-framing convention a Writer uses.
type Dialect string

const (
	DialectCSV    Dialect = "csv"
	DialectTSV    Dialect = "tsv"
	DialectJSON   Dialect = "json"
	DialectCustom Dialect = "custom"
)

// Options is the dump job's immutable configuration. It is constructed
// once (by the CLI in cmd/ or any other caller of dump.Run) and never mutated
// after Run begins.
type Options struct {
	JobID string

	// Output
	OutputURL     string
	Threads       int
	BytesPerChunk int64
	RowIndex      bool
	Compression   Compression
	Dialect       Dialect
	Charset       string
	UTCTimeZone   bool

	// Consistency
	Consistent bool

	// Scope toggles
	DumpDDL      bool
	DumpData     bool
	DumpUsers    bool
	DumpEvents   bool
	DumpRoutines bool
	DumpTriggers bool

	// Inclusion / exclusion (schema, "schema.table", or "user"@"host" patterns)
	IncludeSchemas []string
	ExcludeSchemas []string
	IncludeTables  []string
	ExcludeTables  []string
	IncludeUsers   []string
	ExcludeUsers   []string

	// Compatibility pass target; nil disables it.
	CompatibilityTarget *mysqlconn.ServerVersion

	// RateLimitBytesPerSec bounds each Worker's write rate; 0 disables throttling.
	RateLimitBytesPerSec int64

	Verbose bool
}

// Validate checks Options for internal consistency, returning a
// dumperrors.ErrInvalidConfig-wrapping error describing the first problem
// found.
func (o Options) Validate() error {
	if o.OutputURL == "" {
		return fmt.Errorf("%w: output URL is required", dumperrors.ErrInvalidConfig)
	}
	if o.Threads < 1 {
		return fmt.Errorf("%w: threads must be >= 1, got %d", dumperrors.ErrInvalidConfig, o.Threads)
	}
	if o.BytesPerChunk < 1 {
		return fmt.Errorf("%w: bytes-per-chunk must be >= 1, got %d", dumperrors.ErrInvalidConfig, o.BytesPerChunk)
	}
	switch o.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd, CompressionSnappy:
	default:
		return fmt.Errorf("%w: unknown compression %q", dumperrors.ErrInvalidConfig, o.Compression)
	}
	switch o.Dialect {
	case DialectCSV, DialectTSV, DialectJSON, DialectCustom:
	default:
		return fmt.Errorf("%w: unknown dialect %q", dumperrors.ErrInvalidConfig, o.Dialect)
	}
	if !o.DumpDDL && !o.DumpData && !o.DumpUsers {
		return fmt.Errorf("%w: nothing selected to dump (ddl, data, and users all disabled)", dumperrors.ErrInvalidConfig)
	}
	if o.RateLimitBytesPerSec < 0 {
		return fmt.Errorf("%w: rate limit must be >= 0, got %d", dumperrors.ErrInvalidConfig, o.RateLimitBytesPerSec)
	}
	for _, patterns := range [][]string{o.IncludeSchemas, o.ExcludeSchemas, o.IncludeTables, o.ExcludeTables} {
		for _, p := range patterns {
			if _, err := path.Match(p, ""); err != nil {
				return fmt.Errorf("%w: bad include/exclude pattern %q: %v", dumperrors.ErrInvalidConfig, p, err)
			}
		}
	}
	return nil
}
