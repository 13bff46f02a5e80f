// Package report summarizes disbursed book incentives per month.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"lppm/models"
	"lppm/pkg/workflow"

	"gorm.io/gorm"
)

// Summary totals the PAID submissions of one month.
type Summary struct {
	Month string
	Count int64
	Total int64
}

// Monthly reports submissions paid in month (YYYY-MM, UTC). A non-zero owner
// restricts the report to that owner's submissions.
func Monthly(ctx context.Context, gdb *gorm.DB, month string, owner uint) (Summary, []models.BookSubmission, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("invalid month format, expected YYYY-MM: %w", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	scope := func() *gorm.DB {
		q := gdb.WithContext(ctx).Model(&models.BookSubmission{}).
			Where("status = ? AND payment_date >= ? AND payment_date < ?", string(workflow.Paid), start, end)
		if owner != 0 {
			q = q.Where("owner_id = ?", owner)
		}
		return q
	}

	sum := Summary{Month: month}
	row := scope().Select("COUNT(*), COALESCE(SUM(approved_amount), 0)").Row()
	if err := row.Scan(&sum.Count, &sum.Total); err != nil {
		return Summary{}, nil, fmt.Errorf("query failed: %w", err)
	}
	var rows []models.BookSubmission
	if err := scope().Order("payment_date").Order("id").Find(&rows).Error; err != nil {
		return Summary{}, nil, fmt.Errorf("fetch rows failed: %w", err)
	}
	return sum, rows, nil
}

// Print writes the summary and, with list, one line per submission.
func Print(w io.Writer, sum Summary, rows []models.BookSubmission, list bool) {
	fmt.Fprintf(w, "Disbursement report month=%s (UTC):\n", sum.Month)
	fmt.Fprintf(w, "  paid=%d total=Rp %s\n", sum.Count, workflow.Rupiah(sum.Total))
	if !list {
		return
	}
	for _, r := range rows {
		var amount int64
		if r.ApprovedAmount != nil {
			amount = *r.ApprovedAmount
		}
		paidOn := ""
		if r.PaymentDate != nil {
			paidOn = r.PaymentDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s|%d|%s|%s|%s\n", r.ID, r.OwnerID, r.Title, workflow.Rupiah(amount), paidOn)
	}
}
