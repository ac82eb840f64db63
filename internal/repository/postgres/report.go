package postgres

import (
	"context"

	"github.com/google/uuid"

	"pricewise/internal/domain/report"
	"pricewise/pkg/errors"
)

var _ report.Repository = (*ReportRepository)(nil)

type ReportRepository struct {
	db DBTX
}

func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, user_id, batch_id, domain, summary, details, status, error, created_at`

func (r *ReportRepository) Latest(ctx context.Context, userID uuid.UUID, domain report.Domain) (*report.Report, error) {
	var rep report.Report
	err := r.db.GetContext(ctx, &rep, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE user_id = $1 AND domain = $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, domain)
	if err != nil {
		return nil, notFound(err, "report")
	}
	return &rep, nil
}

func (r *ReportRepository) ListByBatch(ctx context.Context, batchID string) ([]*report.Report, error) {
	return listReports(ctx, r.db, batchID)
}

func listReports(ctx context.Context, db DBTX, batchID string) ([]*report.Report, error) {
	var out []*report.Report
	err := db.SelectContext(ctx, &out, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE batch_id = $1
		ORDER BY created_at, domain`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reports")
	}
	return out, nil
}

func insertReport(ctx context.Context, db DBTX, rep *report.Report) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES (:id, :user_id, :batch_id, :domain, :summary, :details, :status, :error, :created_at)
		ON CONFLICT (id) DO NOTHING`, rep)
	return errors.Wrapf(err, "failed to insert %s report", rep.Domain)
}
