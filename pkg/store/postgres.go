package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/user/zte-adk/pkg/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id                 TEXT PRIMARY KEY,
	job_id             TEXT NOT NULL,
	rule_id            TEXT,
	severity           TEXT NOT NULL,
	resource_type      TEXT NOT NULL,
	resource_name      TEXT NOT NULL,
	issue_description  TEXT NOT NULL,
	recommendation     TEXT NOT NULL,
	risk_score         INTEGER NOT NULL,
	blast_radius       TEXT,
	affected_resources TEXT[],
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS findings_job_created_idx ON findings (job_id, created_at DESC);
`

const findingColumns = `id, job_id, rule_id, severity, resource_type, resource_name,
	issue_description, recommendation, risk_score, blast_radius, affected_resources, created_at`

// severityRankSQL orders rows the same way engine.SortBySeverity does
const severityRankSQL = `CASE severity WHEN 'CRITICAL' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects with dsn and creates the schema if needed
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an open database handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the findings table and index
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, f engine.Finding) error {
	if err := f.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, query,
		f.ID,
		f.JobID,
		nullString(f.RuleID),
		string(f.Severity),
		string(f.ResourceType),
		f.ResourceName,
		f.IssueDescription,
		f.Recommendation,
		*f.RiskScore,
		nullString(f.BlastRadius),
		pq.Array(f.AffectedResources),
		f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, f.ID)
		}
		return fmt.Errorf("failed to insert finding: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, jobID string, opts QueryOptions) ([]engine.Finding, error) {
	var sb strings.Builder
	args := []any{jobID}
	sb.WriteString(`SELECT ` + findingColumns + ` FROM findings WHERE job_id = $1`)
	if opts.Severity != nil {
		args = append(args, string(*opts.Severity))
		sb.WriteString(fmt.Sprintf(" AND severity = $%d", len(args)))
	}
	if opts.Ranked {
		sb.WriteString(" ORDER BY " + severityRankSQL + " DESC, risk_score DESC, created_at DESC")
	} else {
		sb.WriteString(" ORDER BY created_at DESC")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []engine.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate findings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (engine.Finding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+findingColumns+` FROM findings WHERE id = $1`, id)
	f, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Finding{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f, err
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]JobSummary, error) {
	query := `
		SELECT job_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE severity = 'CRITICAL'),
			COUNT(*) FILTER (WHERE severity = 'HIGH'),
			COUNT(*) FILTER (WHERE severity = 'MEDIUM'),
			COUNT(*) FILTER (WHERE severity = 'LOW'),
			MIN(created_at),
			MAX(created_at)
		FROM findings
		GROUP BY job_id
		ORDER BY MIN(created_at) DESC, job_id`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobSummary
	for rows.Next() {
		var (
			js                          JobSummary
			critical, high, medium, low int
		)
		if err := rows.Scan(&js.JobID, &js.FindingCount, &critical, &high, &medium, &low,
			&js.FirstFindingAt, &js.LastFindingAt); err != nil {
			return nil, fmt.Errorf("failed to scan job summary: %w", err)
		}
		js.SeverityCounts = map[engine.Severity]int{
			engine.SeverityCritical: critical,
			engine.SeverityHigh:     high,
			engine.SeverityMedium:   medium,
			engine.SeverityLow:      low,
		}
		out = append(out, js)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFinding(row rowScanner) (engine.Finding, error) {
	var (
		f                      engine.Finding
		ruleID, blastRadius    sql.NullString
		severity, resourceType string
		riskScore              int
		affected               pq.StringArray
		createdAt              time.Time
	)
	err := row.Scan(&f.ID, &f.JobID, &ruleID, &severity, &resourceType, &f.ResourceName,
		&f.IssueDescription, &f.Recommendation, &riskScore, &blastRadius, &affected, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Finding{}, err
		}
		return engine.Finding{}, fmt.Errorf("failed to scan finding: %w", err)
	}
	f.RuleID = ruleID.String
	f.BlastRadius = blastRadius.String
	f.Severity = engine.Severity(severity)
	f.ResourceType = engine.ResourceType(resourceType)
	f.RiskScore = engine.IntPtr(riskScore)
	if len(affected) > 0 {
		f.AffectedResources = []string(affected)
	}
	f.CreatedAt = createdAt.UTC()
	return f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
