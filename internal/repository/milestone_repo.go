package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"enchiridion/internal/models"
	"enchiridion/internal/store"
	"enchiridion/pkg/currency"
)

type MilestoneRepository struct {
	st store.Store
}

func NewMilestoneRepository(st store.Store) *MilestoneRepository {
	return &MilestoneRepository{st: st}
}

// MilestoneKey is the idempotency key of a one-time credit: normalized referee plus type.
func MilestoneKey(referee, milestoneType string) string {
	return strings.ToLower(strings.TrimSpace(referee)) + "_" + milestoneType
}

func (r *MilestoneRepository) List(ctx context.Context) ([]models.Milestone, error) {
	recs, err := r.st.GetAllRecords(ctx, TableMilestones)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	out := make([]models.Milestone, 0, len(recs))
	for _, rec := range recs {
		if rec.Blank() {
			continue
		}
		out = append(out, models.Milestone{
			Row:           rec.Row,
			Timestamp:     parseTime(ColMsTimestamp.From(rec)),
			ReferrerEmail: ColMsReferrer.From(rec),
			Referee:       ColMsReferee.From(rec),
			Type:          ColMsType.From(rec),
			Points:        currency.SafeFloat(ColMsPoints.From(rec)),
			UniqueKey:     ColMsKey.From(rec),
		})
	}
	return out, nil
}

func (r *MilestoneRepository) Exists(ctx context.Context, key string) (bool, error) {
	list, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list {
		if equalFold(m.UniqueKey, key) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MilestoneRepository) Append(ctx context.Context, m *models.Milestone) error {
	if m.UniqueKey == "" {
		m.UniqueKey = MilestoneKey(m.Referee, m.Type)
	}
	row := []any{formatTime(m.Timestamp), m.ReferrerEmail, m.Referee, m.Type, m.Points, m.UniqueKey}
	if err := r.st.AppendRow(ctx, TableMilestones, row); err != nil {
		return fmt.Errorf("append milestone: %w", err)
	}
	return nil
}

// FilterMilestones returns the referrer's milestones of one type, oldest first.
func FilterMilestones(list []models.Milestone, email, milestoneType string) []models.Milestone {
	var out []models.Milestone
	for _, m := range list {
		if equalFold(m.ReferrerEmail, email) && strings.EqualFold(m.Type, milestoneType) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
