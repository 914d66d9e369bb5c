package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"enchiridion/internal/models"
	"enchiridion/internal/store"
)

// LogRepository appends to the marketing and admin logs, which are write-mostly tables.
type LogRepository struct {
	st store.Store
}

func NewLogRepository(st store.Store) *LogRepository {
	return &LogRepository{st: st}
}

func (r *LogRepository) append(ctx context.Context, table string, row []any) error {
	if err := r.st.AppendRow(ctx, table, row); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

func (r *LogRepository) AppendLead(ctx context.Context, l *models.Lead) error {
	return r.append(ctx, TableLeads, []any{formatTime(l.Timestamp), l.Email, l.ReferralCode, l.Source, l.Details})
}

func (r *LogRepository) AppendDistributorLead(ctx context.Context, l *models.DistributorLead) error {
	return r.append(ctx, TableDistributorLeads, []any{
		formatTime(l.Timestamp), l.Name, l.Phone, l.WhatsApp, l.Location, l.ReferralCode, l.SubmittedBy,
	})
}

func (r *LogRepository) AppendShare(ctx context.Context, s *models.ShareTrack) error {
	return r.append(ctx, TableShareTrack, []any{formatTime(s.Timestamp), s.ReferralCode, s.Event, s.Platform, s.IP, s.UserAgent})
}

func (r *LogRepository) AppendNotification(ctx context.Context, n *models.GlobalNotification) error {
	return r.append(ctx, TableNotifications, []any{formatTime(n.Timestamp), n.Type, n.Message, n.ReferralCode})
}

// RecentNotifications returns up to limit broadcasts, newest first.
func (r *LogRepository) RecentNotifications(ctx context.Context, limit int) ([]models.GlobalNotification, error) {
	recs, err := r.st.GetAllRecords(ctx, TableNotifications)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := []models.GlobalNotification{}
	for _, rec := range recs {
		if rec.Blank() {
			continue
		}
		out = append(out, models.GlobalNotification{
			Timestamp:    parseTime(rec.Field(1, "Timestamp")),
			Type:         rec.Field(2, "Type"),
			Message:      rec.Field(3, "Message"),
			ReferralCode: rec.Field(4, "Referral Code"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LogRepository) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	return r.append(ctx, TableAdminAudit, []any{formatTime(e.Timestamp), e.Actor, e.Action, e.Target, e.Details})
}

// HasGrant reports whether the admin audit holds a grant of label to email.
// Rows with a Target must name email exactly; older rows without one fall
// back to a whole-word search of the text.
func (r *LogRepository) HasGrant(ctx context.Context, email, label string) (bool, error) {
	recs, err := r.st.GetAllRecords(ctx, TableAdminAudit)
	if err != nil {
		return false, fmt.Errorf("list audit: %w", err)
	}
	email, label = strings.ToLower(strings.TrimSpace(email)), strings.ToLower(label)
	for _, rec := range recs {
		text := strings.ToLower(strings.Join(rec.Values, " "))
		if !strings.Contains(text, label) {
			continue
		}
		if target := strings.TrimSpace(rec.Field(4, "Target")); target != "" {
			if strings.EqualFold(target, email) {
				return true, nil
			}
			continue
		}
		if containsEmail(text, email) {
			return true, nil
		}
	}
	return false, nil
}

// containsEmail finds email in text where it is not part of a longer address.
func containsEmail(text, email string) bool {
	if email == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], email)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(email)
		before := start == 0 || !isEmailByte(text[start-1])
		after := end == len(text) || !isEmailByte(text[end]) ||
			(text[end] == '.' && (end+1 == len(text) || !isEmailByte(text[end+1])))
		if before && after {
			return true
		}
		from = start + 1
	}
}

func isEmailByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	return strings.IndexByte("._%+-@", b) >= 0
}
