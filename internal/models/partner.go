package models

import "time"

// Partner is one row of the Partners table. Row is the sheet row it was read from.
type Partner struct {
	Row int `json:"-"`

	ID               string    `json:"id"`
	Email            string    `json:"email"`
	HashedPassword   string    `json:"-"`
	FullName         string    `json:"full_name"`
	ReferralCode     string    `json:"referral_code"`
	Points           float64   `json:"points"`
	Revenue          float64   `json:"revenue"`
	LifetimeEarnings float64   `json:"lifetime_earnings"`
	TotalReferrals   int       `json:"total_referrals"`
	PayoutStatus     string    `json:"payout_status"`
	BankName         string    `json:"bank_name"`
	AccountName      string    `json:"account_name"`
	AccountNumber    string    `json:"account_number"`
	ReferredBy       string    `json:"referred_by,omitempty"`
	RegistrationIP   string    `json:"-"`
	DateJoined       time.Time `json:"date_joined"`
	IsSuperuser      bool      `json:"is_superuser"`
	IsActive         bool      `json:"is_active"`
	IsVerified       bool      `json:"is_verified"`
	LastPayout       float64   `json:"last_payout"`
	LastIP           string    `json:"-"`
	Milestone1       string    `json:"milestone_1_status"`
	Milestone2       string    `json:"milestone_2_status"`
	State            string    `json:"state,omitempty"`
	Country          string    `json:"country,omitempty"`
	Profession       string    `json:"profession,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Institution      string    `json:"institution,omitempty"`
}

// ClaimedFlag returns the claimed cell for the tier threshold (50 or 100).
func (p *Partner) ClaimedFlag(threshold int) string {
	if threshold >= 100 {
		return p.Milestone2
	}
	return p.Milestone1
}
