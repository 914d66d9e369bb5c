package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"enchiridion/internal/domain"
	"enchiridion/internal/models"
	"enchiridion/internal/store"

	"github.com/google/uuid"
)

type ReviewRepository struct {
	st store.Store
}

func NewReviewRepository(st store.Store) *ReviewRepository {
	return &ReviewRepository{st: st}
}

// List returns reviews newest first; an empty status returns all of them.
func (r *ReviewRepository) List(ctx context.Context, status string) ([]models.Review, error) {
	recs, err := r.st.GetAllRecords(ctx, TableReviews)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	out := []models.Review{}
	for _, rec := range recs {
		if rec.Blank() {
			continue
		}
		rv := models.Review{
			Row:          rec.Row,
			ID:           ColRevID.From(rec),
			Name:         ColRevName.From(rec),
			JobTitle:     ColRevJobTitle.From(rec),
			Organization: ColRevOrganization.From(rec),
			Rating:       parseInt(ColRevRating.From(rec)),
			Text:         ColRevText.From(rec),
			Status:       strings.ToLower(ColRevStatus.From(rec)),
			CreatedAt:    parseTime(ColRevCreatedAt.From(rec)),
		}
		if t := parseTime(ColRevApprovedAt.From(rec)); !t.IsZero() {
			rv.ApprovedAt = &t
		}
		if status != "" && rv.Status != status {
			continue
		}
		out = append(out, rv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) error {
	rv.ID = uuid.NewString()
	rv.Status = domain.ReviewPending
	rv.CreatedAt = time.Now().UTC()
	row := []any{rv.ID, rv.Name, rv.JobTitle, rv.Organization, rv.Rating, rv.Text, rv.Status, formatTime(rv.CreatedAt), ""}
	if err := r.st.AppendRow(ctx, TableReviews, row); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// SetStatus moderates a review located by id with a single FindCell lookup.
func (r *ReviewRepository) SetStatus(ctx context.Context, id, status string) error {
	row, err := r.st.FindCell(ctx, TableReviews, id, ColRevID.Index)
	if errors.Is(err, store.ErrNotFound) || row == 1 {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find review: %w", err)
	}
	approved := ""
	if status == domain.ReviewApproved {
		approved = formatTime(time.Now())
	}
	cells := []store.CellUpdate{
		{Row: row, Col: ColRevStatus.Index, Value: status},
		{Row: row, Col: ColRevApprovedAt.Index, Value: approved},
	}
	if err := r.st.BatchUpdate(ctx, TableReviews, cells); err != nil {
		return fmt.Errorf("moderate review: %w", err)
	}
	return nil
}
