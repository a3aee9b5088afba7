package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
)

const profileColumns = `company_id, name, naics_codes, set_aside_statuses,
	capabilities, certifications, clearances, keywords, past_performance,
	website, description`

// PostgresDirectory serves profiles from a companies table. Array-typed
// columns (text[]) hold the list fields.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresDirectory(ctx context.Context, dsn string, log *zap.Logger) (*PostgresDirectory, error) {
	if log == nil {
		log = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect company directory: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping company directory: %w", err)
	}

	return &PostgresDirectory{pool: pool, logger: log}, nil
}

func (d *PostgresDirectory) Close() {
	d.pool.Close()
}

func (d *PostgresDirectory) Lookup(ctx context.Context, id string) (*company.Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM companies WHERE company_id = $1", profileColumns)

	row := d.pool.QueryRow(ctx, query, id)
	p, err := scanProfile(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("company %s not found", id)
		}
		return nil, fmt.Errorf("lookup company %s: %w", id, err)
	}
	return p, nil
}

func (d *PostgresDirectory) List(ctx context.Context) ([]*company.Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM companies ORDER BY company_id", profileColumns)

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

func (d *PostgresDirectory) Search(ctx context.Context, filter company.Filter) ([]*company.Profile, error) {
	conditions := []string{}
	args := []any{}
	argPos := 1

	if len(filter.NAICSCodes) > 0 {
		conditions = append(conditions, fmt.Sprintf("naics_codes && $%d", argPos))
		args = append(args, filter.NAICSCodes)
		argPos++
	}
	if filter.Capability != "" {
		conditions = append(conditions, fmt.Sprintf("$%d ILIKE ANY(capabilities)", argPos))
		args = append(args, filter.Capability)
		argPos++
	}
	if filter.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf(
			"($%d ILIKE ANY(keywords) OR description ILIKE '%%' || $%d || '%%')", argPos, argPos+1))
		args = append(args, filter.Keyword, filter.Keyword)
		argPos += 2
	}

	query := fmt.Sprintf("SELECT %s FROM companies", profileColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY company_id"

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search companies: %w", err)
	}
	defer rows.Close()

	profiles, err := collectProfiles(rows)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("company directory search",
		zap.Int("conditions", len(conditions)),
		zap.Int("matched", len(profiles)),
	)

	return profiles, nil
}

func collectProfiles(rows pgx.Rows) ([]*company.Profile, error) {
	var out []*company.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company rows: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (*company.Profile, error) {
	var p company.Profile
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.NAICSCodes,
		&p.SetAsideStatuses,
		&p.Capabilities,
		&p.Certifications,
		&p.Clearances,
		&p.Keywords,
		&p.PastPerformance,
		&p.Website,
		&p.Description,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
