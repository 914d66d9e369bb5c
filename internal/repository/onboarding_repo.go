package repository

import (
	"context"
	"fmt"
	"time"

	"enchiridion/internal/models"
	"enchiridion/internal/store"
)

type OnboardingRepository struct {
	st store.Store
}

func NewOnboardingRepository(st store.Store) *OnboardingRepository {
	return &OnboardingRepository{st: st}
}

// Get returns the onboarding row for email, or ErrNotFound.
func (r *OnboardingRepository) Get(ctx context.Context, email string) (*models.Onboarding, error) {
	recs, err := r.st.GetAllRecords(ctx, TableOnboarding)
	if err != nil {
		return nil, fmt.Errorf("list onboarding: %w", err)
	}
	for _, rec := range recs {
		if !equalFold(ColObEmail.From(rec), email) {
			continue
		}
		return &models.Onboarding{
			Row:              rec.Row,
			Email:            ColObEmail.From(rec),
			IsVerified:       parseBool(ColObVerified.From(rec)),
			IsPartner:        parseBool(ColObPartner.From(rec)),
			IsDistributor:    parseBool(ColObDistributor.From(rec)),
			HasPurchasedBook: parseBool(ColObPurchased.From(rec)),
			LastUpdated:      parseTime(ColObUpdated.From(rec)),
		}, nil
	}
	return nil, ErrNotFound
}

// Upsert applies mutate to the row for email, creating it when absent.
func (r *OnboardingRepository) Upsert(ctx context.Context, email string, mutate func(*models.Onboarding)) (*models.Onboarding, error) {
	ob, err := r.Get(ctx, email)
	if err == ErrNotFound {
		ob = &models.Onboarding{Email: email}
	} else if err != nil {
		return nil, err
	}
	mutate(ob)
	ob.LastUpdated = time.Now().UTC()
	row := []any{ob.Email, formatBool(ob.IsVerified), formatBool(ob.IsPartner), formatBool(ob.IsDistributor),
		formatBool(ob.HasPurchasedBook), formatTime(ob.LastUpdated)}
	if ob.Row == 0 {
		err = r.st.AppendRow(ctx, TableOnboarding, row)
	} else {
		err = r.st.UpdateRange(ctx, TableOnboarding, store.RowRange(1, len(row), ob.Row), [][]any{row})
	}
	if err != nil {
		return nil, fmt.Errorf("save onboarding: %w", err)
	}
	return ob, nil
}
