package sqldao

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default statement keys used by the keyless DAO verbs.
const (
	StmtSelect = "select"
	StmtInsert = "insert"
	StmtUpdate = "update"
	StmtDelete = "delete"
)

// ErrNoStatement is returned when a statement key resolves to no SQL text,
// either because the key is absent from the statement map or because its
// entry is empty.
var ErrNoStatement = errors.New("sqldao: no sql statement for key")

// Statements maps statement keys to SQL text. Keys are arbitrary; the
// keyless DAO verbs use the Stmt* defaults. A nil map is valid and simply
// resolves nothing. The map is read-only once a DAO starts serving calls;
// populate it up front, from literals or one of the Load functions.
type Statements map[string]string

// SQL resolves key to its SQL text. A missing key and an empty entry are
// the same misconfiguration; both report ErrNoStatement naming the key.
func (s Statements) SQL(key string) (string, error) {
	if q := s[key]; q != "" {
		return q, nil
	}
	return "", fmt.Errorf("%w %q", ErrNoStatement, key)
}

// ParseStatements decodes a flat YAML mapping of statement keys to SQL text:
//
//	select: |
//	  SELECT id, email FROM users WHERE id = :id
//	insert: |
//	  INSERT INTO users (id, email) VALUES (:id, :email)
func ParseStatements(data []byte) (Statements, error) {
	var s Statements
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("sqldao: parse statements: %w", err)
	}
	return s, nil
}

// LoadStatements reads a flat YAML statement map from path.
func LoadStatements(path string) (Statements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sqldao: read statements: %w", err)
	}
	return ParseStatements(data)
}

// ParseStatementSets decodes a YAML document holding one statement map per
// name, so several DAOs can share a single file:
//
//	user:
//	  select: SELECT id, email FROM users WHERE id = :id
//	  delete: DELETE FROM users WHERE id = :id
//	order:
//	  select: SELECT id, total FROM orders WHERE user_id = :user_id
func ParseStatementSets(data []byte) (map[string]Statements, error) {
	var sets map[string]Statements
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("sqldao: parse statement sets: %w", err)
	}
	return sets, nil
}

// LoadStatementSets reads a YAML file of named statement maps from path.
func LoadStatementSets(path string) (map[string]Statements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sqldao: read statement sets: %w", err)
	}
	return ParseStatementSets(data)
}
