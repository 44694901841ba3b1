package store

import (
	"context"
	"fmt"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// CreateValidationIssue implements store.Store (§4.12).
func (p *Postgres) CreateValidationIssue(ctx context.Context, iss *graph.ValidationIssue) (string, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO validation_issues (issue_id, city, subject_kind, subject_id, category, detail, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		iss.ID, iss.City, iss.SubjectKind, iss.SubjectID, iss.Category, iss.Detail, graph.IssueStatusOpen)
	if err != nil {
		return "", fmt.Errorf("create validation issue: %w", err)
	}
	return iss.ID, nil
}

// ListOpenIssues implements store.Store. subjectKind == "" matches all
// subject kinds.
func (p *Postgres) ListOpenIssues(ctx context.Context, city string, subjectKind graph.SubjectKind, since time.Time) ([]*graph.ValidationIssue, error) {
	query := `SELECT issue_id, city, subject_kind, subject_id, category, detail, status, created_at, resolved_at
		FROM validation_issues WHERE city = $1 AND status = 'open' AND created_at >= $2`
	args := []any{city, since}
	if subjectKind != "" {
		query += ` AND subject_kind = $3`
		args = append(args, subjectKind)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open issues: %w", err)
	}
	defer rows.Close()

	var out []*graph.ValidationIssue
	for rows.Next() {
		var iss graph.ValidationIssue
		if err := rows.Scan(&iss.ID, &iss.City, &iss.SubjectKind, &iss.SubjectID, &iss.Category,
			&iss.Detail, &iss.Status, &iss.CreatedAt, &iss.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, &iss)
	}
	return out, rows.Err()
}

// ExpireIssue implements store.Store (§4.12, IssueExpiryWindow).
func (p *Postgres) ExpireIssue(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE validation_issues SET status = 'expired', resolved_at = now() WHERE issue_id = $1`, id)
	if err != nil {
		return fmt.Errorf("expire issue: %w", err)
	}
	return nil
}

// PurgeResolvedIssues hard-deletes resolved and expired issues whose
// resolved_at precedes cutoff. Separate from ExpireIssue's open-to-expired
// transition (§4.12, IssueExpiryWindow): this trims the long tail of
// already-closed rows a retention sweep has no further use for.
func (p *Postgres) PurgeResolvedIssues(ctx context.Context, city string, cutoff time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM validation_issues
		WHERE city = $1 AND status IN ('resolved', 'expired') AND resolved_at < $2`,
		city, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge resolved issues: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
