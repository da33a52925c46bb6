package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchema map[string]bool

func (s fakeSchema) HasTable(name string) bool {
	return s[name]
}

var usersOrders = fakeSchema{"users": true, "orders": true, "order_items": true}

func TestValidateAcceptsPlainSelect(t *testing.T) {
	vq, rej := Validate("SELECT * FROM orders WHERE total > 100", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, RulePlainSelect, vq.Rule())
	assert.Equal(t, []string{"orders"}, vq.Tables())
	assert.Equal(t, "SELECT * FROM orders WHERE total > 100", vq.SQL())
}

func TestValidateAcceptsZeroTableSelect(t *testing.T) {
	vq, rej := Validate("SELECT 1", usersOrders)
	require.Nil(t, rej)
	assert.Empty(t, vq.Tables())
}

func TestValidateRejectsMultiStatement(t *testing.T) {
	cases := []string{
		"SELECT name FROM users; DROP TABLE users;",
		"select 1; select 2",
		"SELECT 1 ;\n  SELECT 2",
		"SELECT 1;--x\nSELECT 2",
	}
	for _, raw := range cases {
		_, rej := Validate(raw, usersOrders)
		require.NotNil(t, rej, "input: %s", raw)
		assert.Equal(t, ReasonMultiStatement, rej.Reason, "input: %s", raw)
	}
}

func TestValidateAllowsTrailingSemicolon(t *testing.T) {
	vq, rej := Validate("SELECT id FROM users;", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, "SELECT id FROM users", vq.SQL())
}

func TestValidateRejectsNonSelect(t *testing.T) {
	cases := []string{
		"UPDATE users SET active=0",
		"insert into users values (1)",
		"DELETE FROM users",
		"DROP TABLE users",
		"PRAGMA journal_mode=WAL",
		"CREATE TABLE t (id INT)",
		"EXPLAIN SELECT * FROM users",
		"ATTACH DATABASE 'x.db' AS other",
		"TRUNCATE orders",
		"REPLACE INTO users VALUES (1, 'a')",
	}
	for _, raw := range cases {
		_, rej := Validate(raw, usersOrders)
		require.NotNil(t, rej, "input: %s", raw)
		assert.Equal(t, ReasonNotReadOnly, rej.Reason, "input: %s", raw)
	}
}

func TestValidateRejectsSmuggledWriteKeyword(t *testing.T) {
	cases := []string{
		"SELECT * FROM users WHERE id IN (DELETE FROM orders RETURNING id)",
		"WITH x AS (INSERT INTO users DEFAULT VALUES RETURNING id) SELECT * FROM x",
		"SELECT * FROM (SELECT 1) t WHERE EXISTS (SELECT drop FROM users)",
	}
	for _, raw := range cases {
		_, rej := Validate(raw, usersOrders)
		require.NotNil(t, rej, "input: %s", raw)
		assert.Equal(t, ReasonNotReadOnly, rej.Reason, "input: %s", raw)
	}
}

func TestValidateKeywordInsideStringLiteralIsFine(t *testing.T) {
	vq, rej := Validate("SELECT * FROM users WHERE name = 'DROP TABLE'", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, []string{"users"}, vq.Tables())
}

func TestValidateSemicolonInsideStringLiteralIsFine(t *testing.T) {
	_, rej := Validate("SELECT * FROM users WHERE note = 'a; b'", usersOrders)
	assert.Nil(t, rej)
}

func TestValidateRejectsUnknownTable(t *testing.T) {
	_, rej := Validate("SELECT * FROM ghost_table", usersOrders)
	require.NotNil(t, rej)
	assert.Equal(t, ReasonUnknownTable, rej.Reason)
}

func TestValidateCaseInsensitiveKeywords(t *testing.T) {
	vq, rej := Validate("sElEcT id FrOm USERS", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, RulePlainSelect, vq.Rule())
	assert.Equal(t, []string{"users"}, vq.Tables())
}

func TestValidateWithSelectChain(t *testing.T) {
	raw := `WITH big AS (SELECT user_id FROM orders WHERE total > 500),
	       named(uid) AS (SELECT user_id FROM big)
	       SELECT u.name FROM users u JOIN named ON named.uid = u.id`
	vq, rej := Validate(raw, usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, RuleWithSelect, vq.Rule())
	assert.ElementsMatch(t, []string{"orders", "users"}, vq.Tables())
}

func TestValidateJoinAndCommaLists(t *testing.T) {
	vq, rej := Validate(
		"SELECT * FROM users u, orders o JOIN order_items oi ON oi.order_id = o.id",
		usersOrders)
	require.Nil(t, rej)
	assert.ElementsMatch(t, []string{"users", "orders", "order_items"}, vq.Tables())
}

func TestValidateDerivedTableSubquery(t *testing.T) {
	vq, rej := Validate(
		"SELECT t.n FROM (SELECT count(*) AS n FROM orders) t",
		usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, []string{"orders"}, vq.Tables())
}

func TestValidateQuotedIdentifiers(t *testing.T) {
	vq, rej := Validate(`SELECT * FROM "orders"`, usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, []string{"orders"}, vq.Tables())
}

func TestValidateSchemaQualifiedName(t *testing.T) {
	vq, rej := Validate("SELECT * FROM main.orders", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, []string{"orders"}, vq.Tables())
}

func TestValidateStripsComments(t *testing.T) {
	vq, rej := Validate("-- a comment\nSELECT id /* inline */ FROM users", usersOrders)
	require.Nil(t, rej)
	assert.Equal(t, []string{"users"}, vq.Tables())
}

func TestValidateUnparseable(t *testing.T) {
	for _, raw := range []string{"", "   ", "SELECT 'unterminated", "/* never closed SELECT 1"} {
		_, rej := Validate(raw, usersOrders)
		require.NotNil(t, rej, "input: %q", raw)
		assert.Equal(t, ReasonUnparseable, rej.Reason, "input: %q", raw)
	}
}

func TestValidateNilSchemaSkipsTableCheck(t *testing.T) {
	vq, rej := Validate("SELECT * FROM anything", nil)
	require.Nil(t, rej)
	assert.Equal(t, []string{"anything"}, vq.Tables())
}
