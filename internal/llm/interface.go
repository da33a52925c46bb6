package llm

import (
	"context"
)

// QueryResponse is what the generator must produce for every question: a
// candidate SQL query plus a short explanation of what it does. The SQL is
// untrusted text until the validator has accepted it.
type QueryResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	QueryType   string `json:"query_type,omitempty"`
}

// SQLGenerator turns a natural-language question into a candidate SQL
// query, given a textual description of the schema it may reference
type SQLGenerator interface {
	// GenerateSQL produces a candidate query for the question
	GenerateSQL(ctx context.Context, question, schemaContext string) (*QueryResponse, error)

	// Suggestions proposes example questions a user could ask about the
	// schema
	Suggestions(ctx context.Context, schemaContext string) ([]string, error)
}
