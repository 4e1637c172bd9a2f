// internal/store/sql.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/harvex/leadharvest/internal/utils"
	"github.com/harvex/leadharvest/pkg/types"
)

var sqlLogger = utils.NewComponentLogger("sql-store")

// SQLStore implements JobStore on database/sql. The driver is selected
// from the DSN scheme: sqlite3://, mysql://, or postgres://.
type SQLStore struct {
	db       *sql.DB
	driver   string
	postgres bool
}

const jobColumns = `id, task_type, adapter_name, query, urls, status, progress_percent,
	total_urls, completed_urls, failed_urls, results_count, error_message,
	created_at, updated_at, started_at, completed_at`

// NewSQLStore opens a SQL-backed store and creates its schema if missing.
func NewSQLStore(dsn string) (*SQLStore, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "database unreachable")
	}

	s := &SQLStore{db: db, driver: driver, postgres: driver == "postgres"}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	sqlLogger.Infof("opened %s job store", driver)
	return s, nil
}

// splitDSN maps a DSN onto a database/sql driver name and source string.
func splitDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://"), nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil // lib/pq accepts the URL form directly
	default:
		return "", "", utils.NewErrorf(utils.ErrCodeInvalidConfig, "unsupported store DSN: %q", dsn)
	}
}

func (s *SQLStore) createSchema() error {
	text := "TEXT"
	if s.driver == "mysql" {
		text = "MEDIUMTEXT"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS jobs (
			id VARCHAR(36) PRIMARY KEY,
			task_type VARCHAR(16) NOT NULL,
			adapter_name VARCHAR(128) NOT NULL,
			query %s,
			urls %s,
			status VARCHAR(16) NOT NULL,
			progress_percent INTEGER NOT NULL DEFAULT 0,
			total_urls INTEGER NOT NULL DEFAULT 0,
			completed_urls INTEGER NOT NULL DEFAULT 0,
			failed_urls INTEGER NOT NULL DEFAULT 0,
			results_count INTEGER NOT NULL DEFAULT 0,
			error_message %s,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP NULL,
			completed_at TIMESTAMP NULL
		)`, text, text, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS results (
			id VARCHAR(36) PRIMARY KEY,
			job_id VARCHAR(36) NOT NULL,
			url %s NOT NULL,
			result_type VARCHAR(16) NOT NULL,
			data %s,
			scraped_at TIMESTAMP NOT NULL
		)`, text, text),
		`CREATE INDEX IF NOT EXISTS idx_results_job_id ON results (job_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return utils.WrapError(err, utils.ErrCodeStoreFailure, "schema creation failed")
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreateJob inserts a new job row.
func (s *SQLStore) CreateJob(ctx context.Context, job *types.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = types.StatusPending
	}

	urls, err := json.Marshal(job.URLs)
	if err != nil {
		return "", utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to encode URL list")
	}

	query := s.rebind(`INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		job.ID, string(job.TaskType), job.AdapterName, job.Query, string(urls),
		string(job.Status), job.ProgressPercent, job.TotalURLs, job.CompletedURLs,
		job.FailedURLs, job.ResultsCount, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return "", utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to insert job")
	}
	return job.ID, nil
}

// UpdateJob applies the partial update as one UPDATE statement, so
// concurrent readers never observe a half-applied progress state. The
// statement filters out terminal statuses, so a job that completed between
// the caller's read and this write stays untouched.
func (s *SQLStore) UpdateJob(ctx context.Context, id string, update JobUpdate) error {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.ProgressPercent != nil {
		add("progress_percent", *update.ProgressPercent)
	}
	if update.TotalURLs != nil {
		add("total_urls", *update.TotalURLs)
	}
	if update.CompletedURLs != nil {
		add("completed_urls", *update.CompletedURLs)
	}
	if update.FailedURLs != nil {
		add("failed_urls", *update.FailedURLs)
	}
	if update.ResultsCount != nil {
		add("results_count", *update.ResultsCount)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if update.URLs != nil {
		encoded, err := json.Marshal(update.URLs)
		if err != nil {
			return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to encode URL list")
		}
		add("urls", string(encoded))
	}
	if update.StartedAt != nil {
		add("started_at", *update.StartedAt)
	}
	if update.CompletedAt != nil {
		add("completed_at", *update.CompletedAt)
	}

	add("updated_at", time.Now().UTC())
	args = append(args, id)
	var terminal []string
	for _, status := range terminalStatuses() {
		args = append(args, string(status))
		terminal = append(terminal, "?")
	}

	query := s.rebind("UPDATE jobs SET " + strings.Join(sets, ", ") +
		" WHERE id = ? AND status NOT IN (" + strings.Join(terminal, ", ") + ")")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to update job")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return errAlreadyTerminal(id, job.Status)
	}
	return nil
}

// GetJob loads a single job row.
func (s *SQLStore) GetJob(ctx context.Context, id string) (*types.Job, error) {
	query := s.rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errJobNotFound(id)
	}
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to load job")
	}
	return job, nil
}

// ListJobs returns up to limit jobs, newest first.
func (s *SQLStore) ListJobs(ctx context.Context, limit int) ([]types.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.rebind(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to scan job row")
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// SaveResult inserts an immutable result row.
func (s *SQLStore) SaveResult(ctx context.Context, result *types.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.ScrapedAt.IsZero() {
		result.ScrapedAt = time.Now().UTC()
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to encode result data")
	}

	query := s.rebind(`INSERT INTO results (id, job_id, url, result_type, data, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		result.ID, result.JobID, result.URL, string(result.ResultType), string(data), result.ScrapedAt)
	if err != nil {
		return utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to insert result")
	}
	return nil
}

// GetResults returns all result rows for a job.
func (s *SQLStore) GetResults(ctx context.Context, jobID string) ([]types.Result, error) {
	query := s.rebind(`SELECT id, job_id, url, result_type, data, scraped_at
		FROM results WHERE job_id = ? ORDER BY scraped_at`)
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to load results")
	}
	defer rows.Close()

	var results []types.Result
	for rows.Next() {
		var r types.Result
		var resultType, data string
		if err := rows.Scan(&r.ID, &r.JobID, &r.URL, &resultType, &data, &r.ScrapedAt); err != nil {
			return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to scan result row")
		}
		r.ResultType = types.TaskType(resultType)
		if data != "" {
			if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
				sqlLogger.Warnf("result %s has undecodable data: %v", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats aggregates job counts for the dashboard.
func (s *SQLStore) Stats(ctx context.Context) (*types.JobStats, error) {
	stats := &types.JobStats{}

	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END)
		FROM jobs`)
	var completed, failed, running sql.NullInt64
	if err := row.Scan(&stats.TotalJobs, &completed, &failed, &running); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to aggregate job stats")
	}
	stats.CompletedJobs = int(completed.Int64)
	stats.FailedJobs = int(failed.Int64)
	stats.RunningJobs = int(running.Int64)

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&stats.TotalResults); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeStoreFailure, "failed to count results")
	}

	recent, err := s.ListJobs(ctx, 10)
	if err != nil {
		return nil, err
	}
	stats.RecentJobs = recent
	return stats, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rowScanner abstracts sql.Row and sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*types.Job, error) {
	var job types.Job
	var taskType, status, urls string
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&job.ID, &taskType, &job.AdapterName, &job.Query, &urls,
		&status, &job.ProgressPercent, &job.TotalURLs, &job.CompletedURLs,
		&job.FailedURLs, &job.ResultsCount, &errorMessage,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	job.TaskType = types.TaskType(taskType)
	job.Status = types.JobStatus(status)
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	if urls != "" {
		if err := json.Unmarshal([]byte(urls), &job.URLs); err != nil {
			sqlLogger.Warnf("job %s has undecodable URL list: %v", job.ID, err)
		}
	}
	return &job, nil
}

// nullTime converts a zero time to NULL.
func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
