package domain

const (
	PayoutPending   = "PENDING"
	PayoutCompleted = "COMPLETED"
)

// Activity types written to the activity log.
const (
	ActivityRegistration     = "registration"
	ActivityVerification     = "verification"
	ActivityVisit            = "visit"
	ActivityShare            = "share"
	ActivityBookPurchase     = "book_purchase"
	ActivityPurchaseCashback = "purchase_cashback"
	ActivityDistributorLead  = "distributor_lead"
	ActivityTierBonus        = "tier_bonus"
	ActivityPayout           = "payout"
	ActivityRevert           = "payout_revert"
	ActivityNote             = "note"
)

// Milestone types double as the suffix of the idempotency key.
const (
	MilestoneRegistration     = "registration"
	MilestoneVerification     = "verification"
	MilestoneVisit            = "visit"
	MilestoneShare            = "share"
	MilestoneBookPurchase     = "book_purchase"
	MilestonePurchaseCashback = "purchase_cashback"
	MilestoneDistributorLead  = "distributor_lead"
)

const (
	PointsRegistration     = 0.0
	PointsVerification     = 0.1
	PointsBookPurchase     = 5.0
	PointsPurchaseCashback = 1.0
	PointsDistributorLead  = 0.1
)

const (
	StatusCredited            = "credited"
	StatusAlreadyCredited     = "already_credited"
	StatusSelfReferralBlocked = "self_referral_blocked"
	StatusPendingVerification = "pending_verification"
	StatusBalanceFailed       = "balance_failed"
)

const ClaimedFlag = "CLAIMED"

// Tier is a flat bonus unlocked at a referral count.
type Tier struct {
	Threshold int
	Bonus     float64 // naira
	Label     string
}

var Tiers = []Tier{
	{Threshold: 50, Bonus: 2000, Label: "50 Referrals Milestone"},
	{Threshold: 100, Bonus: 5000, Label: "100 Referrals Milestone"},
}

// TierFor returns the tier with the given threshold.
func TierFor(threshold int) (Tier, bool) {
	for _, t := range Tiers {
		if t.Threshold == threshold {
			return t, true
		}
	}
	return Tier{}, false
}

// Legacy ranks by book-purchase referrals.
const (
	RankSeeker = "Seeker"
	RankSage   = "Sage"
	RankMaster = "Master"

	SageThreshold   = 6
	MasterThreshold = 16
)

const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Outbox message kinds and states.
const (
	OutboxEmail          = "email"
	OutboxPurchaseCredit = "purchase_credit"
	OutboxBroadcastPush  = "broadcast_push"

	OutboxPending = "PENDING"
	OutboxDone    = "DONE"
	OutboxDead    = "DEAD"
)
