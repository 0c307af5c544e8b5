package schema

import (
	"fmt"
	"regexp"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/nethalo/dbdump/internal/mysqlconn"
)

// Pre/post-pass regexes for clauses vitess's AST doesn't expose per
// statement kind (CREATE VIEW/TRIGGER/EVENT/PROCEDURE/FUNCTION all carry
// a DEFINER clause vitess parses differently per statement), following
// the teacher's own "pre-pass regexes for statements Vitess can't parse
// or loses info from" convention in internal/parser/sql.go.
var (
	reDefiner       = regexp.MustCompile("(?i)DEFINER\\s*=\\s*(`[^`]*`|[^\\s@]+)@(`[^`]*`|[^\\s(]+)\\s*")
	reTablespace    = regexp.MustCompile(`(?i)\s+TABLESPACE\s*=?\s*` + "`?[A-Za-z0-9_]+`?")
	reStorageEngine = regexp.MustCompile("(?i)\\s+ENGINE\\s*=\\s*[A-Za-z0-9_]+")
)

// Issue records one compatibility-pass rewrite or the reason one could
// not be applied.
type Issue struct {
	Description string
	Status      string // "rewritten", "stripped", "unfixable"
}

// CompatibilityPass rewrites ddl for CompatibilityTarget, returning the
// rewritten text and the list of issues encountered. An unfixable issue
// does not stop the pass. The caller (internal/worker's writeDDLFile)
// logs every issue as a warning; no issue, fixable or not, aborts the job.
func CompatibilityPass(ddl string, target *mysqlconn.ServerVersion) (string, []Issue, error) {
	if target == nil {
		return ddl, nil, nil
	}
	var issues []Issue
	out := ddl

	if loc := reDefiner.FindStringIndex(out); loc != nil {
		out = reDefiner.ReplaceAllString(out, "")
		issues = append(issues, Issue{Description: "stripped DEFINER clause", Status: "stripped"})
	}

	if reTablespace.MatchString(out) {
		out = reTablespace.ReplaceAllString(out, "")
		issues = append(issues, Issue{Description: "stripped TABLESPACE clause", Status: "stripped"})
	}
	if target.Flavor != "" && target.Flavor != "mysql" && reStorageEngine.MatchString(out) {
		out = reStorageEngine.ReplaceAllString(out, "")
		issues = append(issues, Issue{Description: "stripped ENGINE clause for cross-flavor target", Status: "stripped"})
	}

	out, validateIssues, err := validateCreateTable(out)
	if err != nil {
		return out, append(issues, validateIssues...), err
	}
	issues = append(issues, validateIssues...)
	return out, issues, nil
}

// validateCreateTable round-trips CREATE TABLE statements through
// vitess's parser to confirm the rewritten text is still valid SQL,
// re-serializing via sqlparser.String the way the teacher's parser
// package does for every AST node it touches. Non-CREATE-TABLE
// statements (views, triggers, events, routines) are not structurally
// understood by this AST and pass through unchanged.
func validateCreateTable(ddl string) (string, []Issue, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(ddl), ";"))
	if !strings.HasPrefix(strings.ToUpper(trimmed), "CREATE TABLE") {
		return ddl, nil, nil
	}

	parser, err := sqlparser.New(sqlparser.Options{})
	if err != nil {
		return ddl, nil, fmt.Errorf("schema: init sql parser: %w", err)
	}
	stmt, err := parser.Parse(trimmed)
	if err != nil {
		return ddl, []Issue{{Description: "CREATE TABLE did not re-parse after rewrite: " + err.Error(), Status: "unfixable"}}, nil
	}
	create, ok := stmt.(*sqlparser.CreateTable)
	if !ok {
		return ddl, nil, nil
	}
	return sqlparser.String(create) + ";\n", nil, nil
}
