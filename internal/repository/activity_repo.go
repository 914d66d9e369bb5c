package repository

import (
	"context"
	"fmt"
	"strings"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/store"
	"enchiridion/pkg/currency"
)

type ActivityRepository struct {
	st store.Store
}

func NewActivityRepository(st store.Store) *ActivityRepository {
	return &ActivityRepository{st: st}
}

func (r *ActivityRepository) Append(ctx context.Context, a *models.Activity) error {
	if a.PayoutStatus == "" {
		a.PayoutStatus = domain.PayoutPending
	}
	if a.Reported == "" {
		a.Reported = "FALSE"
	}
	row := []any{formatTime(a.Timestamp), a.ReferralCode, a.Type, a.Points, a.Details, a.Reported, a.PayoutStatus}
	if err := r.st.AppendRow(ctx, TableActivityLog, row); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context) ([]models.Activity, error) {
	recs, err := r.st.GetAllRecords(ctx, TableActivityLog)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]models.Activity, 0, len(recs))
	for _, rec := range recs {
		if rec.Blank() {
			continue
		}
		out = append(out, models.Activity{
			Row:          rec.Row,
			Timestamp:    parseTime(ColActTimestamp.From(rec)),
			ReferralCode: ColActCode.From(rec),
			Type:         ColActType.From(rec),
			Points:       currency.SafeFloat(ColActPoints.From(rec)),
			Details:      ColActDetails.From(rec),
			Reported:     ColActReported.From(rec),
			PayoutStatus: strings.ToUpper(ColActStatus.From(rec)),
		})
	}
	return out, nil
}

// MarkCompleted flips every PENDING row for code to COMPLETED in one batch
// and returns the number of rows changed.
func (r *ActivityRepository) MarkCompleted(ctx context.Context, code string) (int, error) {
	recs, err := r.st.GetAllRecords(ctx, TableActivityLog)
	if err != nil {
		return 0, fmt.Errorf("list activity: %w", err)
	}
	var cells []store.CellUpdate
	for _, rec := range recs {
		if !equalFold(ColActCode.From(rec), code) {
			continue
		}
		if !strings.EqualFold(ColActStatus.From(rec), domain.PayoutPending) {
			continue
		}
		cells = append(cells, store.CellUpdate{Row: rec.Row, Col: ColActStatus.In(rec.Header), Value: domain.PayoutCompleted})
	}
	if len(cells) == 0 {
		return 0, nil
	}
	if err := r.st.BatchUpdate(ctx, TableActivityLog, cells); err != nil {
		return 0, fmt.Errorf("complete activity: %w", err)
	}
	return len(cells), nil
}
