package sqlcheck

import (
	"fmt"
	"strings"
)

// Reason identifies why a candidate query was rejected
type Reason string

const (
	ReasonMultiStatement Reason = "multi_statement"
	ReasonNotReadOnly    Reason = "not_read_only"
	ReasonUnknownTable   Reason = "unknown_table"
	ReasonUnparseable    Reason = "unparseable"
)

// Rejection describes a refused candidate query
type Rejection struct {
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", r.Reason, r.Detail)
}

// RulePath records which validation rule path accepted a query.
// It is carried for audit logging and never changes execution behavior.
type RulePath string

const (
	RulePlainSelect RulePath = "plain_select"
	RuleWithSelect  RulePath = "with_select"
)

// ValidatedQuery is a query string proven to be a single, read-only,
// schema-consistent statement. Only Validate can construct one.
type ValidatedQuery struct {
	sql    string
	rule   RulePath
	tables []string
}

// SQL returns the validated query text
func (q *ValidatedQuery) SQL() string {
	return q.sql
}

// Rule returns the rule path that accepted the query
func (q *ValidatedQuery) Rule() RulePath {
	return q.rule
}

// Tables returns the referenced table names, lowercased
func (q *ValidatedQuery) Tables() []string {
	out := make([]string, len(q.tables))
	copy(out, q.tables)
	return out
}

// Schema is the minimal view the validator needs of a schema snapshot
type Schema interface {
	HasTable(name string) bool
}

// Keywords that must never appear as a standalone token anywhere in the
// text, including inside CTE bodies and subqueries. Matches the blocklist
// the generation prompt promises the model it will be held to.
var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"REPLACE":  true,
	"ATTACH":   true,
	"DETACH":   true,
	"PRAGMA":   true,
	"VACUUM":   true,
	"GRANT":    true,
	"REVOKE":   true,
}

// Validate classifies a raw AI-produced query string against the schema.
// The classification is purely lexical: some safe queries may be rejected,
// no unsafe query is ever accepted.
func Validate(raw string, schema Schema) (*ValidatedQuery, *Rejection) {
	if strings.TrimSpace(raw) == "" {
		return nil, &Rejection{Reason: ReasonUnparseable, Detail: "empty query"}
	}

	tokens, err := tokenize(raw)
	if err != nil {
		return nil, &Rejection{Reason: ReasonUnparseable, Detail: err.Error()}
	}
	if len(tokens) == 0 {
		return nil, &Rejection{Reason: ReasonUnparseable, Detail: "no statement found"}
	}

	// A terminator followed by anything is a second statement, regardless
	// of what that statement looks like.
	for i, tok := range tokens {
		if tok.kind == tokPunct && tok.text == ";" && i < len(tokens)-1 {
			return nil, &Rejection{
				Reason: ReasonMultiStatement,
				Detail: "statement terminator followed by additional content",
			}
		}
	}

	// Leading keyword decides the rule path
	var rule RulePath
	first := tokens[0]
	switch {
	case first.isKeyword("SELECT"):
		rule = RulePlainSelect
	case first.isKeyword("WITH"):
		rule = RuleWithSelect
	default:
		return nil, &Rejection{
			Reason: ReasonNotReadOnly,
			Detail: fmt.Sprintf("only SELECT queries are allowed, got %q", first.text),
		}
	}

	// Write keywords are rejected wherever they appear, not only at the
	// start. Guards against keywords smuggled inside subqueries or CTEs.
	for _, tok := range tokens {
		if tok.kind == tokWord && writeKeywords[strings.ToUpper(tok.text)] {
			return nil, &Rejection{
				Reason: ReasonNotReadOnly,
				Detail: fmt.Sprintf("disallowed keyword %q", strings.ToUpper(tok.text)),
			}
		}
	}

	tables := referencedTables(tokens)
	if schema != nil {
		for _, name := range tables {
			if !schema.HasTable(name) {
				return nil, &Rejection{
					Reason: ReasonUnknownTable,
					Detail: fmt.Sprintf("table %q does not exist in the current schema", name),
				}
			}
		}
	}

	sql := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
	return &ValidatedQuery{sql: sql, rule: rule, tables: tables}, nil
}

// clause keywords that end a FROM table list
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "JOIN": true, "LEFT": true, "RIGHT": true,
	"INNER": true, "OUTER": true, "FULL": true, "CROSS": true,
	"NATURAL": true, "ON": true, "USING": true, "WINDOW": true,
	"SELECT": true, "WITH": true, "FROM": true,
}

// referencedTables extracts table identifiers following FROM and JOIN,
// excluding names bound by a WITH clause and derived-table subqueries.
func referencedTables(tokens []token) []string {
	cte := cteNames(tokens)
	seen := map[string]bool{}
	var tables []string

	add := func(name string) {
		name = strings.ToLower(name)
		if name == "" || cte[name] || seen[name] {
			return
		}
		seen[name] = true
		tables = append(tables, name)
	}

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].isKeyword("FROM") && !tokens[i].isKeyword("JOIN") {
			continue
		}
		fromList := tokens[i].isKeyword("FROM")
		j := i + 1
		for j < len(tokens) {
			// Derived table: skip the parenthesized subquery, its tables
			// are found by the outer scan.
			if tokens[j].isPunct("(") {
				j = skipParens(tokens, j)
			} else if tokens[j].isIdent() {
				name, next := qualifiedName(tokens, j)
				add(name)
				j = next
				// optional AS and alias
				if j < len(tokens) && tokens[j].isKeyword("AS") {
					j++
				}
				if j < len(tokens) && tokens[j].isIdent() && !clauseKeywords[strings.ToUpper(tokens[j].text)] {
					j++
				}
			} else {
				break
			}
			// comma-separated FROM lists continue the table list
			if fromList && j < len(tokens) && tokens[j].isPunct(",") {
				j++
				continue
			}
			break
		}
	}
	return tables
}

// cteNames collects the identifiers bound by a leading WITH clause so they
// are not resolved against the schema.
func cteNames(tokens []token) map[string]bool {
	names := map[string]bool{}
	if len(tokens) == 0 || !tokens[0].isKeyword("WITH") {
		return names
	}
	i := 1
	if i < len(tokens) && tokens[i].isKeyword("RECURSIVE") {
		i++
	}
	for i < len(tokens) {
		if !tokens[i].isIdent() {
			break
		}
		names[strings.ToLower(tokens[i].identText())] = true
		i++
		// optional column list: name(a, b) AS (...)
		if i < len(tokens) && tokens[i].isPunct("(") {
			i = skipParens(tokens, i)
		}
		if i >= len(tokens) || !tokens[i].isKeyword("AS") {
			break
		}
		i++
		if i >= len(tokens) || !tokens[i].isPunct("(") {
			break
		}
		i = skipParens(tokens, i)
		if i < len(tokens) && tokens[i].isPunct(",") {
			i++
			continue
		}
		break
	}
	return names
}

// qualifiedName consumes an optionally schema-qualified identifier starting
// at i and returns the final name part with the index past it.
func qualifiedName(tokens []token, i int) (string, int) {
	name := tokens[i].identText()
	i++
	for i+1 < len(tokens) && tokens[i].isPunct(".") && tokens[i+1].isIdent() {
		name = tokens[i+1].identText()
		i += 2
	}
	return name, i
}

// skipParens returns the index just past the parenthesis group opening at i
func skipParens(tokens []token, i int) int {
	depth := 0
	for ; i < len(tokens); i++ {
		switch {
		case tokens[i].isPunct("("):
			depth++
		case tokens[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}
