package db

import (
	"fmt"
	"strings"
	"time"
)

// SourceType represents supported data source types
type SourceType string

const (
	SourceTypeSQLite     SourceType = "sqlite"
	SourceTypePostgreSQL SourceType = "postgresql"
	SourceTypeMySQL      SourceType = "mysql"
)

// ValueType represents the type of a result value
type ValueType string

const (
	ValueTypeNull      ValueType = "null"
	ValueTypeInteger   ValueType = "integer"
	ValueTypeFloat     ValueType = "float"
	ValueTypeText      ValueType = "text"
	ValueTypeBoolean   ValueType = "boolean"
	ValueTypeTimestamp ValueType = "timestamp"
)

// Value represents a unified typed scalar in a result set
type Value struct {
	Type  ValueType   `json:"type"`
	Data  interface{} `json:"data"`
	Valid bool        `json:"valid"`
}

// NewNullValue creates a new null value
func NewNullValue() Value {
	return Value{Type: ValueTypeNull, Data: nil, Valid: false}
}

// NewIntegerValue creates a new integer value
func NewIntegerValue(v int64) Value {
	return Value{Type: ValueTypeInteger, Data: v, Valid: true}
}

// NewFloatValue creates a new float value
func NewFloatValue(v float64) Value {
	return Value{Type: ValueTypeFloat, Data: v, Valid: true}
}

// NewTextValue creates a new text value
func NewTextValue(v string) Value {
	return Value{Type: ValueTypeText, Data: v, Valid: true}
}

// NewBooleanValue creates a new boolean value
func NewBooleanValue(v bool) Value {
	return Value{Type: ValueTypeBoolean, Data: v, Valid: true}
}

// NewTimestampValue creates a new timestamp value
func NewTimestampValue(t time.Time) Value {
	return Value{Type: ValueTypeTimestamp, Data: t, Valid: true}
}

// AsInt64 returns value as int64
func (v Value) AsInt64() (int64, bool) {
	if v.Type == ValueTypeInteger && v.Valid {
		return v.Data.(int64), true
	}
	return 0, false
}

// AsFloat64 returns value as float64
func (v Value) AsFloat64() (float64, bool) {
	if v.Type == ValueTypeFloat && v.Valid {
		return v.Data.(float64), true
	}
	return 0, false
}

// AsString returns value as string
func (v Value) AsString() (string, bool) {
	if v.Type == ValueTypeText && v.Valid {
		return v.Data.(string), true
	}
	return "", false
}

// AsBool returns value as bool
func (v Value) AsBool() (bool, bool) {
	if v.Type == ValueTypeBoolean && v.Valid {
		return v.Data.(bool), true
	}
	return false, false
}

// AsTimestamp returns value as time.Time
func (v Value) AsTimestamp() (time.Time, bool) {
	if v.Type == ValueTypeTimestamp && v.Valid {
		return v.Data.(time.Time), true
	}
	return time.Time{}, false
}

// IsNull returns true if value is null
func (v Value) IsNull() bool {
	return v.Type == ValueTypeNull || !v.Valid
}

// Export returns the value in its JSON-native representation
func (v Value) Export() interface{} {
	if v.IsNull() {
		return nil
	}
	if t, ok := v.AsTimestamp(); ok {
		return t.Format(time.RFC3339)
	}
	return v.Data
}

// Format renders the value as display text
func (v Value) Format() string {
	if v.IsNull() {
		return ""
	}
	switch v.Type {
	case ValueTypeTimestamp:
		return v.Data.(time.Time).Format(time.RFC3339)
	case ValueTypeText:
		return v.Data.(string)
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// approxSize estimates the serialized size of a value for the byte cap
func (v Value) approxSize() int {
	if v.IsNull() {
		return 4
	}
	switch v.Type {
	case ValueTypeText:
		return len(v.Data.(string))
	case ValueTypeTimestamp:
		return len(time.RFC3339)
	default:
		return 8
	}
}

// Row represents one result row
type Row struct {
	Values []Value `json:"values"`
}

// Column represents one result column
type Column struct {
	Name string    `json:"name"`
	Type ValueType `json:"type"`
}

// ResultSet represents the typed, ordered output of executing a query.
// Immutable once produced.
type ResultSet struct {
	Columns   []Column      `json:"columns"`
	Rows      []Row         `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
	Elapsed   time.Duration `json:"elapsed"`
}

// ColumnNames returns the result column names in order
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// mapSQLTypeToValueType maps declared SQL type names to ValueType
func mapSQLTypeToValueType(sqlType string) ValueType {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int"), strings.Contains(t, "serial"):
		return ValueTypeInteger
	case strings.Contains(t, "float"), strings.Contains(t, "double"),
		strings.Contains(t, "real"), strings.Contains(t, "decimal"),
		strings.Contains(t, "numeric"):
		return ValueTypeFloat
	case strings.Contains(t, "bool"):
		return ValueTypeBoolean
	case strings.Contains(t, "timestamp"), strings.Contains(t, "date"),
		strings.Contains(t, "time"):
		return ValueTypeTimestamp
	default:
		return ValueTypeText
	}
}

// convertSQLValue converts a database/sql scan result to a Value
func convertSQLValue(val interface{}, expectedType ValueType) Value {
	if val == nil {
		return NewNullValue()
	}
	switch v := val.(type) {
	case int64:
		if expectedType == ValueTypeBoolean {
			return NewBooleanValue(v != 0)
		}
		return NewIntegerValue(v)
	case float64:
		return NewFloatValue(v)
	case string:
		return NewTextValue(v)
	case bool:
		return NewBooleanValue(v)
	case []byte:
		return NewTextValue(string(v))
	case time.Time:
		if v.IsZero() {
			return NewNullValue()
		}
		return NewTimestampValue(v)
	default:
		return NewTextValue(fmt.Sprintf("%v", v))
	}
}
