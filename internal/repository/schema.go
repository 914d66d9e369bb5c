package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"enchiridion/internal/store"
)

var ErrNotFound = errors.New("record not found")

const (
	TablePartners         = "Partners"
	TableActivityLog      = "ActivityLog"
	TableMilestones       = "ReferralMilestones"
	TableOnboarding       = "UserOnboarding"
	TableReviews          = "Reviews"
	TableNotifications    = "GlobalNotifications"
	TableDistributorLeads = "Distributor Leads"
	TableLeads            = "Leads"
	TableShareTrack       = "ShareTrack"
	TableAdminAudit       = "Admin Audit"
)

// Column maps a logical field to its fixed 1-based position and the header
// spellings accepted for it.
type Column struct {
	Index   int
	Aliases []string
}

// From reads the column from a record, by header first and position second.
func (c Column) From(r store.Record) string {
	return r.Field(c.Index, c.Aliases...)
}

// In returns the 1-based position of the column under header h.
func (c Column) In(h *store.Header) int {
	if i, ok := h.Index(c.Aliases...); ok {
		return i + 1
	}
	return c.Index
}

func col(index int, aliases ...string) Column { return Column{Index: index, Aliases: aliases} }

// Partners columns A..AB.
var (
	ColEmail          = col(1, "USERNAME", "Email Address", "Email")
	ColPassword       = col(2, "PASSWORD", "hashed_password")
	ColFullName       = col(3, "FULL NAME", "Name")
	ColReferralCode   = col(4, "REFERRAL CODE", "Code")
	ColPoints         = col(5, "POINTS")
	ColRevenue        = col(6, "REVENUE (₦)", "REVENUE", "Revenue NGN")
	ColLifetime       = col(7, "LIFETIME EARNINGS", "Lifetime")
	ColTotalReferrals = col(8, "TOTAL REFERRALS", "Referrals")
	ColPayoutStatus   = col(9, "PAYOUT STATUS")
	ColBankName       = col(10, "BANK NAME")
	ColAccountName    = col(11, "ACCOUNT NAME")
	ColAccountNumber  = col(12, "ACCOUNT NUMBER")
	ColReferredBy     = col(13, "REFERRED_BY", "Referred By")
	ColRegistrationIP = col(14, "REGISTRATION_IP", "IP")
	ColDateJoined     = col(15, "DATE_JOINED", "Date Joined")
	ColIsSuperuser    = col(16, "is_superuser")
	ColIsActive       = col(17, "is_active")
	ColIsVerified     = col(18, "is_verified")
	ColLastPayout     = col(19, "LAST PAYOUT AMOUNT", "Last Payout")
	ColLastIP         = col(20, "LAST_IP", "Last Login IP")
	ColID             = col(21, "ID", "UUID")
	ColMilestone1     = col(22, "MILESTONE 1 STATUS", "Milestone 1")
	ColMilestone2     = col(23, "MILESTONE 2 STATUS", "Milestone 2")
	ColState          = col(24, "STATE")
	ColCountry        = col(25, "COUNTRY")
	ColProfession     = col(26, "PROFESSION")
	ColPhone          = col(27, "PHONE")
	ColInstitution    = col(28, "INSTITUTION")
)

var partnerColumns = []Column{
	ColEmail, ColPassword, ColFullName, ColReferralCode, ColPoints, ColRevenue, ColLifetime,
	ColTotalReferrals, ColPayoutStatus, ColBankName, ColAccountName, ColAccountNumber, ColReferredBy,
	ColRegistrationIP, ColDateJoined, ColIsSuperuser, ColIsActive, ColIsVerified, ColLastPayout,
	ColLastIP, ColID, ColMilestone1, ColMilestone2, ColState, ColCountry, ColProfession, ColPhone,
	ColInstitution,
}

// ActivityLog columns.
var (
	ColActTimestamp = col(1, "Timestamp", "Date")
	ColActCode      = col(2, "Referral Code")
	ColActType      = col(3, "Activity Type", "Activity")
	ColActPoints    = col(4, "Points")
	ColActDetails   = col(5, "Details")
	ColActReported  = col(6, "Reported")
	ColActStatus    = col(7, "Payout Status", "Status")
)

// ReferralMilestones columns.
var (
	ColMsTimestamp = col(1, "Timestamp")
	ColMsReferrer  = col(2, "Referrer Email")
	ColMsReferee   = col(3, "Referee", "Referee Email")
	ColMsType      = col(4, "Milestone Type", "Type")
	ColMsPoints    = col(5, "Points")
	ColMsKey       = col(6, "Unique Key", "Key")
)

// UserOnboarding columns.
var (
	ColObEmail       = col(1, "Email")
	ColObVerified    = col(2, "is_verified")
	ColObPartner     = col(3, "is_partner")
	ColObDistributor = col(4, "is_distributor")
	ColObPurchased   = col(5, "has_purchased_book")
	ColObUpdated     = col(6, "Last Updated")
)

// Reviews columns.
var (
	ColRevID           = col(1, "id")
	ColRevName         = col(2, "Name")
	ColRevJobTitle     = col(3, "Job Title")
	ColRevOrganization = col(4, "Organization")
	ColRevRating       = col(5, "Rating")
	ColRevText         = col(6, "Text", "Review")
	ColRevStatus       = col(7, "Status")
	ColRevCreatedAt    = col(8, "CreatedAt", "Created At")
	ColRevApprovedAt   = col(9, "ApprovedAt", "Approved At")
)

// Headers written when a table is first created.
var TableHeaders = map[string][]string{
	TablePartners: {
		"USERNAME", "PASSWORD", "FULL NAME", "REFERRAL CODE", "POINTS", "REVENUE (₦)", "LIFETIME EARNINGS",
		"TOTAL REFERRALS", "PAYOUT STATUS", "BANK NAME", "ACCOUNT NAME", "ACCOUNT NUMBER", "REFERRED_BY",
		"REGISTRATION_IP", "DATE_JOINED", "is_superuser", "is_active", "is_verified", "LAST PAYOUT AMOUNT",
		"LAST_IP", "ID", "MILESTONE 1 STATUS", "MILESTONE 2 STATUS", "STATE", "COUNTRY", "PROFESSION",
		"PHONE", "INSTITUTION",
	},
	TableActivityLog:      {"Timestamp", "Referral Code", "Activity Type", "Points", "Details", "Reported", "Payout Status"},
	TableMilestones:       {"Timestamp", "Referrer Email", "Referee", "Milestone Type", "Points", "Unique Key"},
	TableOnboarding:       {"Email", "is_verified", "is_partner", "is_distributor", "has_purchased_book", "Last Updated"},
	TableReviews:          {"id", "Name", "Job Title", "Organization", "Rating", "Text", "Status", "CreatedAt", "ApprovedAt"},
	TableNotifications:    {"Timestamp", "Type", "Message", "Referral Code"},
	TableDistributorLeads: {"Timestamp", "Name", "Phone", "WhatsApp", "Location", "Referral Code", "Submitted By"},
	TableLeads:            {"Timestamp", "Email", "Referral Code", "Source", "Details"},
	TableShareTrack:       {"Timestamp", "Referral Code", "Event", "Platform", "IP", "User Agent"},
	TableAdminAudit:       {"Timestamp", "Actor", "Action", "Target", "Details"},
}

// EnsureTables creates every table that is missing.
func EnsureTables(ctx context.Context, st store.Store) error {
	for table, headers := range TableHeaders {
		if err := st.GetOrCreate(ctx, table, headers); err != nil {
			return err
		}
	}
	return nil
}

const timeLayout = time.RFC3339

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02",
	"1/2/2006 15:04:05",
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime accepts the layouts found in hand-edited sheets; unknown text yields the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
