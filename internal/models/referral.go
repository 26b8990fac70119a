package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralEdge links a referred user to one ancestor at a given depth.
// A user has at most one edge per level.
type ReferralEdge struct {
	ID         int       `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerId int       `gorm:"column:referrer_id;not null;index" json:"referrer_id"`
	ReferredId int       `gorm:"column:referred_id;not null;uniqueIndex:idx_referral_referred_level" json:"referred_id"`
	Level      int       `gorm:"column:level;not null;uniqueIndex:idx_referral_referred_level" json:"level"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReferralEdge) TableName() string {
	return "referrals"
}

// ReferralEarning records one commission paid for one deposit at one level.
// (transaction_id, level) is unique and is what makes distribution idempotent.
type ReferralEarning struct {
	ID                      int             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId                  int             `gorm:"column:user_id;not null;index" json:"user_id"`
	ReferralEdgeId          int             `gorm:"column:referral_id" json:"referral_id"`
	Amount                  decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Level                   int             `gorm:"column:level;not null;uniqueIndex:idx_earning_trx_level" json:"level"`
	TransactionId           int             `gorm:"column:transaction_id;not null;uniqueIndex:idx_earning_trx_level" json:"transaction_id"`
	CommissionTransactionId int             `gorm:"column:commission_transaction_id" json:"commission_transaction_id"`
	CreatedAt               time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ReferralEarning) TableName() string {
	return "referral_earnings"
}
