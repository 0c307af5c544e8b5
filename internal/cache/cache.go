// Package cache builds the InstanceCache: the read-only metadata snapshot
// every other component consumes once the Coordinator reaches Cached
// (spec.md §4.3). Query shapes follow the teacher's
// mysql.GetTableMetadata/getColumns/getIndexes information_schema queries.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matched, _ := pathMatch(p, name); matched {
			return true
		}
	}
	return false
}

// pathMatch is a glob match over schema/table/user names — "shop_*",
// "orders_2???", "[ab]*" — via the standard library's shell-glob
// matcher. Schema-qualified names (schema.table) have no '/' in them, so
// path.Match's path-separator handling never triggers; it behaves as a
// plain single-segment glob here.
func pathMatch(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}

// included reports whether name passes opts' include/exclude pattern sets:
// an empty include list means "everything", exclude always wins.
func included(include, exclude []string, name string) bool {
	if matchesAny(exclude, name) {
		return false
	}
	if len(include) == 0 {
		return true
	}
	return matchesAny(include, name)
}

// BuildMinimal populates schema and table names only, so the Coordinator
// knows what to lock before BuildFull runs under that lock.
func BuildMinimal(ctx context.Context, db *sql.DB, opts dumpmodel.Options) (*dumpmodel.InstanceCache, error) {
	cache := dumpmodel.NewInstanceCache()

	rows, err := db.QueryContext(ctx, `
		SELECT SCHEMA_NAME
		FROM information_schema.SCHEMATA
		WHERE SCHEMA_NAME NOT IN ('mysql','information_schema','performance_schema','sys')
		ORDER BY SCHEMA_NAME
	`)
	if err != nil {
		return nil, fmt.Errorf("cache: list schemas: %w", err)
	}
	defer rows.Close()

	var schemaNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("cache: scan schema: %w", err)
		}
		if included(opts.IncludeSchemas, opts.ExcludeSchemas, name) {
			schemaNames = append(schemaNames, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, schema := range schemaNames {
		info := &dumpmodel.SchemaInfo{
			Tables: make(map[string]*dumpmodel.TableInfo),
			Views:  make(map[string]*dumpmodel.ViewInfo),
		}
		tableRows, err := db.QueryContext(ctx, `
			SELECT TABLE_NAME, TABLE_TYPE
			FROM information_schema.TABLES
			WHERE TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME
		`, schema)
		if err != nil {
			return nil, fmt.Errorf("cache: list tables of %s: %w", schema, err)
		}
		for tableRows.Next() {
			var name, kind string
			if err := tableRows.Scan(&name, &kind); err != nil {
				tableRows.Close()
				return nil, fmt.Errorf("cache: scan table: %w", err)
			}
			qualified := schema + "." + name
			if !included(opts.IncludeTables, opts.ExcludeTables, qualified) {
				continue
			}
			if kind == "VIEW" {
				info.Views[name] = &dumpmodel.ViewInfo{}
			} else {
				info.Tables[name] = &dumpmodel.TableInfo{}
			}
		}
		if err := tableRows.Err(); err != nil {
			tableRows.Close()
			return nil, err
		}
		tableRows.Close()
		cache.Schemas[schema] = info
	}
	return cache, nil
}

// BuildFull mutates minimal in place, adding columns, indexes, row-count
// estimates, views, routines, events, triggers, and users.
func BuildFull(ctx context.Context, db *sql.DB, minimal *dumpmodel.InstanceCache, opts dumpmodel.Options) error {
	for schema, info := range minimal.Schemas {
		for table, ti := range info.Tables {
			if err := fillTable(ctx, db, schema, table, ti); err != nil {
				return fmt.Errorf("cache: fill table %s.%s: %w", schema, table, err)
			}
		}
		for view, vi := range info.Views {
			cols, err := fetchColumns(ctx, db, schema, view)
			if err != nil {
				return fmt.Errorf("cache: fill view %s.%s: %w", schema, view, err)
			}
			vi.Columns = cols
		}
		if opts.DumpRoutines {
			routines, err := fetchRoutines(ctx, db, schema)
			if err != nil {
				return fmt.Errorf("cache: routines of %s: %w", schema, err)
			}
			info.Routines = routines
		}
		if opts.DumpEvents {
			events, err := fetchEvents(ctx, db, schema)
			if err != nil {
				return fmt.Errorf("cache: events of %s: %w", schema, err)
			}
			info.Events = events
		}
		if opts.DumpTriggers {
			triggers, err := fetchTriggers(ctx, db, schema)
			if err != nil {
				return fmt.Errorf("cache: triggers of %s: %w", schema, err)
			}
			info.Triggers = triggers
		}
	}
	if opts.DumpUsers {
		users, err := fetchUsers(ctx, db, opts)
		if err != nil {
			return fmt.Errorf("cache: users: %w", err)
		}
		minimal.Users = users
	}
	return nil
}

func fillTable(ctx context.Context, db *sql.DB, schema, table string, ti *dumpmodel.TableInfo) error {
	var rowCount, avgRowLen sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT IFNULL(TABLE_ROWS, 0), IFNULL(AVG_ROW_LENGTH, 0)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, schema, table).Scan(&rowCount, &avgRowLen)
	if err != nil {
		return fmt.Errorf("row estimate: %w", err)
	}
	ti.RowCountEstimate = rowCount.Int64
	ti.AvgRowLength = avgRowLen.Int64
	ti.HasStatistics = avgRowLen.Valid && avgRowLen.Int64 > 0
	if !ti.HasStatistics {
		ti.AvgRowLength = 256
	}

	cols, err := fetchColumns(ctx, db, schema, table)
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	ti.Columns = cols

	indexes, err := fetchIndexes(ctx, db, schema, table)
	if err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	ti.Index = ChooseIndex(indexes, cols)
	return nil
}

func fetchColumns(ctx context.Context, db *sql.DB, schema, table string) ([]dumpmodel.ColumnMeta, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []dumpmodel.ColumnMeta
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, dumpmodel.ColumnMeta{
			Name:           name,
			Type:           typ,
			Nullable:       nullable == "YES",
			EncodingUnsafe: ClassifyEncoding(typ),
		})
	}
	return cols, rows.Err()
}

// indexCandidate mirrors the teacher's IndexInfo, scoped to this package.
type indexCandidate struct {
	Name      string
	Columns   []string
	NonUnique bool
	Primary   bool
}

func fetchIndexes(ctx context.Context, db *sql.DB, schema, table string) ([]indexCandidate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*indexCandidate)
	var order []string
	for rows.Next() {
		var name, col string
		var nonUnique bool
		if err := rows.Scan(&name, &col, &nonUnique); err != nil {
			return nil, err
		}
		if _, ok := byName[name]; !ok {
			byName[name] = &indexCandidate{Name: name, NonUnique: nonUnique, Primary: name == "PRIMARY"}
			order = append(order, name)
		}
		byName[name].Columns = append(byName[name].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]indexCandidate, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result, nil
}

func fetchRoutines(ctx context.Context, db *sql.DB, schema string) ([]dumpmodel.RoutineInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT ROUTINE_NAME, ROUTINE_TYPE
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		ORDER BY ROUTINE_NAME
	`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dumpmodel.RoutineInfo
	for rows.Next() {
		var r dumpmodel.RoutineInfo
		if err := rows.Scan(&r.Name, &r.Kind); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchEvents(ctx context.Context, db *sql.DB, schema string) ([]dumpmodel.EventInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT EVENT_NAME
		FROM information_schema.EVENTS
		WHERE EVENT_SCHEMA = ?
		ORDER BY EVENT_NAME
	`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dumpmodel.EventInfo
	for rows.Next() {
		var e dumpmodel.EventInfo
		if err := rows.Scan(&e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func fetchTriggers(ctx context.Context, db *sql.DB, schema string) ([]dumpmodel.TriggerInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TRIGGER_NAME, EVENT_OBJECT_TABLE
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME
	`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dumpmodel.TriggerInfo
	for rows.Next() {
		var tg dumpmodel.TriggerInfo
		if err := rows.Scan(&tg.Name, &tg.Table); err != nil {
			return nil, err
		}
		out = append(out, tg)
	}
	return out, rows.Err()
}

func fetchUsers(ctx context.Context, db *sql.DB, opts dumpmodel.Options) ([]dumpmodel.UserInfo, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT User, Host FROM mysql.user ORDER BY User, Host
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dumpmodel.UserInfo
	for rows.Next() {
		var u dumpmodel.UserInfo
		if err := rows.Scan(&u.User, &u.Host); err != nil {
			return nil, err
		}
		qualified := fmt.Sprintf("%s@%s", u.User, u.Host)
		if included(opts.IncludeUsers, opts.ExcludeUsers, qualified) {
			out = append(out, u)
		}
	}
	return out, rows.Err()
}

// ChooseIndex prefers the primary key, then a unique non-nullable index,
// then any non-unique index. Ties break on: covers a numeric column
// first, then fewer columns, then lexicographic column-name join.
func ChooseIndex(candidates []indexCandidate, cols []dumpmodel.ColumnMeta) *dumpmodel.ChosenIndex {
	nullable := make(map[string]bool, len(cols))
	numeric := make(map[string]bool, len(cols))
	for _, c := range cols {
		nullable[c.Name] = c.Nullable
		numeric[c.Name] = isNumericType(c.Type)
	}

	var best *indexCandidate
	bestRank := -1
	for i := range candidates {
		c := &candidates[i]
		rank := indexRank(c, nullable)
		if rank < 0 {
			continue
		}
		if best == nil || rank > bestRank ||
			(rank == bestRank && betterTieBreak(c, best, numeric)) {
			best = c
			bestRank = rank
		}
	}
	if best == nil {
		return nil
	}
	return &dumpmodel.ChosenIndex{Name: best.Name, Primary: best.Primary, Columns: best.Columns}
}

func indexRank(c *indexCandidate, nullable map[string]bool) int {
	switch {
	case c.Primary:
		return 2
	case !c.NonUnique && !anyNullable(c.Columns, nullable):
		return 1
	case !c.NonUnique:
		return -1
	default:
		return 0
	}
}

func anyNullable(cols []string, nullable map[string]bool) bool {
	for _, col := range cols {
		if nullable[col] {
			return true
		}
	}
	return false
}

func betterTieBreak(candidate, incumbent *indexCandidate, numeric map[string]bool) bool {
	cNumeric, iNumeric := numeric[candidate.Columns[0]], numeric[incumbent.Columns[0]]
	if cNumeric != iNumeric {
		return cNumeric
	}
	if len(candidate.Columns) != len(incumbent.Columns) {
		return len(candidate.Columns) < len(incumbent.Columns)
	}
	return joinCols(candidate.Columns) < joinCols(incumbent.Columns)
}

func joinCols(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += "," + c
	}
	return out
}

func isNumericType(columnType string) bool {
	for _, prefix := range []string{"int", "bigint", "smallint", "mediumint", "tinyint", "decimal", "float", "double", "year"} {
		if hasPrefixFold(columnType, prefix) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// ClassifyEncoding reports whether columnType needs hex/base64 framing in
// output files: binary strings, spatial types, and JSON.
func ClassifyEncoding(columnType string) bool {
	unsafe := []string{"blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary", "json", "geometry", "point", "linestring", "polygon", "multipoint", "multilinestring", "multipolygon", "geometrycollection"}
	for _, prefix := range unsafe {
		if hasPrefixFold(columnType, prefix) {
			return true
		}
	}
	return false
}
