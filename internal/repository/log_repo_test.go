package repository

import (
	"context"
	"testing"
	"time"

	"enchiridion/internal/models"
	"enchiridion/internal/store"
)

func TestHasGrant(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := EnsureTables(ctx, st); err != nil {
		t.Fatal(err)
	}
	logs := NewLogRepository(st)
	entries := []models.AuditEntry{
		{Actor: "admin", Action: "tier_bonus", Target: "ba@x.ng", Details: "Granted 50 Referrals Milestone to ba@x.ng (NGN 2,000.00)"},
		// written before the Target column was filled in
		{Actor: "admin", Action: "tier_bonus", Details: "Granted 100 Referrals Milestone to old@x.ng."},
		{Actor: "admin", Action: "tier_bonus", Details: "Granted 100 Referrals Milestone to sold@x.ng"},
	}
	for i := range entries {
		entries[i].Timestamp = time.Now()
		if err := logs.AppendAudit(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		email, label string
		want         bool
	}{
		{"ba@x.ng", "50 Referrals Milestone", true},
		{"BA@x.ng", "50 Referrals Milestone", true},
		{"a@x.ng", "50 Referrals Milestone", false},
		{"ba@x.ng", "100 Referrals Milestone", false},
		{"old@x.ng", "100 Referrals Milestone", true},
		{"ld@x.ng", "100 Referrals Milestone", false},
		{"old@x.n", "100 Referrals Milestone", false},
	}
	for _, tt := range tests {
		got, err := logs.HasGrant(ctx, tt.email, tt.label)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("HasGrant(%q, %q) = %v, want %v", tt.email, tt.label, got, tt.want)
		}
	}
}
