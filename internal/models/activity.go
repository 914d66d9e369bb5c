package models

import "time"

type Activity struct {
	Row          int       `json:"-"`
	Timestamp    time.Time `json:"timestamp"`
	ReferralCode string    `json:"referral_code"`
	Type         string    `json:"activity_type"`
	Points       float64   `json:"points"`
	Details      string    `json:"details"`
	Reported     string    `json:"reported"`
	PayoutStatus string    `json:"payout_status"`
}

// Milestone is the idempotency record for a one-time credit.
type Milestone struct {
	Row           int       `json:"-"`
	Timestamp     time.Time `json:"timestamp"`
	ReferrerEmail string    `json:"referrer_email"`
	Referee       string    `json:"referee"`
	Type          string    `json:"milestone_type"`
	Points        float64   `json:"points"`
	UniqueKey     string    `json:"unique_key"`
}

type Onboarding struct {
	Row              int       `json:"-"`
	Email            string    `json:"email"`
	IsVerified       bool      `json:"is_verified"`
	IsPartner        bool      `json:"is_partner"`
	IsDistributor    bool      `json:"is_distributor"`
	HasPurchasedBook bool      `json:"has_purchased_book"`
	LastUpdated      time.Time `json:"last_updated"`
}

type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
}
