package models

import "time"

type Review struct {
	Row          int        `json:"-"`
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	JobTitle     string     `json:"job_title"`
	Organization string     `json:"organization"`
	Rating       int        `json:"rating"`
	Text         string     `json:"text"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

type GlobalNotification struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	ReferralCode string    `json:"referral_code,omitempty"`
}

type DistributorLead struct {
	Timestamp    time.Time `json:"timestamp"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	WhatsApp     string    `json:"whatsapp"`
	Location     string    `json:"location"`
	ReferralCode string    `json:"referral_code"`
	SubmittedBy  string    `json:"submitted_by"`
}

type Lead struct {
	Timestamp    time.Time `json:"timestamp"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"referral_code"`
	Source       string    `json:"source"`
	Details      string    `json:"details"`
}

type ShareTrack struct {
	Timestamp    time.Time `json:"timestamp"`
	ReferralCode string    `json:"referral_code"`
	Event        string    `json:"event"`
	Platform     string    `json:"platform"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"user_agent"`
}
