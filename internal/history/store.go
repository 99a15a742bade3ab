package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// TokenGenerator produces run tokens for new records.
type TokenGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDv4 run tokens.
type UUIDGenerator struct{}

// Generate returns a new UUID string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Record is one successful conversion.
type Record struct {
	Seq           int64    `json:"seq"`
	RunToken      string   `json:"run_token"`
	ModelName     string   `json:"model_name"`
	ModelDigest   string   `json:"model_digest"`
	ModelLength   int      `json:"model_length"`
	Operators     []string `json:"operators"`
	OperatorCount int      `json:"operator_count"`
	HeaderPath    string   `json:"header_path"`
	HeaderDigest  string   `json:"header_digest"`
}

// Store provides durable storage for conversion records.
type Store struct {
	db     *sql.DB
	tokens TokenGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithTokenGenerator overrides the run token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Store) {
		s.tokens = g
	}
}

// Open creates or opens a SQLite database at path and applies the schema.
// Safe to call on an existing database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, tokens: UUIDGenerator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Record appends rec and returns it with Seq and RunToken filled in.
// An empty RunToken is replaced by the store's token generator.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.RunToken == "" {
		rec.RunToken = s.tokens.Generate()
	}
	ops := rec.Operators
	if ops == nil {
		ops = []string{}
	}
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return Record{}, fmt.Errorf("record conversion: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversions
		(run_token, model_name, model_digest, model_length, operators, operator_count, header_path, header_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunToken,
		rec.ModelName,
		rec.ModelDigest,
		rec.ModelLength,
		string(opsJSON),
		rec.OperatorCount,
		rec.HeaderPath,
		rec.HeaderDigest,
	)
	if err != nil {
		return Record{}, fmt.Errorf("record conversion: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("record conversion: %w", err)
	}
	rec.Seq = seq
	rec.Operators = ops
	return rec, nil
}

// List returns all records ordered by seq.
// Returns an empty slice (not nil) when there are none.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, run_token, model_name, model_digest, model_length, operators, operator_count, header_path, header_digest
		FROM conversions
		ORDER BY seq ASC
	`)
}

// FindByModelDigest returns the records of every conversion of one model.
func (s *Store) FindByModelDigest(ctx context.Context, digest string) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, run_token, model_name, model_digest, model_length, operators, operator_count, header_path, header_digest
		FROM conversions
		WHERE model_digest = ?
		ORDER BY seq ASC
	`, digest)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var opsJSON string
		if err := rows.Scan(
			&rec.Seq,
			&rec.RunToken,
			&rec.ModelName,
			&rec.ModelDigest,
			&rec.ModelLength,
			&opsJSON,
			&rec.OperatorCount,
			&rec.HeaderPath,
			&rec.HeaderDigest,
		); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		if err := json.Unmarshal([]byte(opsJSON), &rec.Operators); err != nil {
			return nil, fmt.Errorf("decode operators of conversion %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return records, nil
}
