package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID                int             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId            int             `gorm:"column:user_id;not null;uniqueIndex:idx_wallet_user" json:"user_id"`
	Balance           decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0.00" json:"balance"`
	InvestedAmount    decimal.Decimal `gorm:"column:invested_amount;type:decimal(20,2);not null;default:0.00" json:"invested_amount"`
	PendingWithdrawal decimal.Decimal `gorm:"column:pending_withdrawal;type:decimal(20,2);not null;default:0.00" json:"pending_withdrawal"`
	TotalEarnings     decimal.Decimal `gorm:"column:total_earnings;type:decimal(20,2);not null;default:0.00" json:"total_earnings"`
	WithdrawalCount   int             `gorm:"column:withdrawal_count;not null;default:0" json:"withdrawal_count"`
	LastWithdrawalAt  *time.Time      `gorm:"column:last_withdrawal_at" json:"last_withdrawal_at"`
	Currency          string          `gorm:"column:currency;size:10;not null" json:"currency"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// AvailableBalance is what the user can still withdraw or invest.
// It is derived and never persisted.
func (w Wallet) AvailableBalance() decimal.Decimal {
	return w.Balance.Sub(w.InvestedAmount).Sub(w.PendingWithdrawal)
}
