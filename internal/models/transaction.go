package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit            TransactionType = "deposit"
	TransactionWithdrawal         TransactionType = "withdrawal"
	TransactionInvestment         TransactionType = "investment"
	TransactionInvestmentRelease  TransactionType = "investment_release"
	TransactionROIPayout          TransactionType = "roi_payout"
	TransactionReferralCommission TransactionType = "referral_commission"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionInvestment,
		TransactionInvestmentRelease, TransactionROIPayout, TransactionReferralCommission:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusCancelled  TransactionStatus = "cancelled"
)

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether a transaction may move from s to next.
// Terminal states never change.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next.Terminal()
	case StatusProcessing:
		return next.Terminal()
	}
	return false
}

type Transaction struct {
	ID            int               `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId        int               `gorm:"column:user_id;not null;index:idx_trx_user" json:"user_id"`
	Type          TransactionType   `gorm:"column:type;size:30;not null;index:idx_trx_type_status" json:"type"`
	Amount        decimal.Decimal   `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status        TransactionStatus `gorm:"column:status;size:20;not null;default:pending;index:idx_trx_type_status" json:"status"`
	PaymentMethod string            `gorm:"column:payment_method;size:50" json:"payment_method"`
	Reference     string            `gorm:"column:reference;size:64;not null;uniqueIndex" json:"reference"`
	ProjectId     *int              `gorm:"column:project_id" json:"project_id"`
	Description   string            `gorm:"column:description;type:text" json:"description"`
	CompletedAt   *time.Time        `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
