package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	switch s {
	case WithdrawalPending:
		return next == WithdrawalApproved || next == WithdrawalRejected
	case WithdrawalApproved:
		return next == WithdrawalProcessing
	case WithdrawalProcessing:
		return next == WithdrawalCompleted || next == WithdrawalFailed
	}
	return false
}

type WithdrawalRequest struct {
	ID               int              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId           int              `gorm:"column:user_id;not null;index:idx_withdrawal_user" json:"user_id"`
	Amount           decimal.Decimal  `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status           WithdrawalStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	PaymentMethod    string           `gorm:"column:payment_method;size:50" json:"payment_method"`
	Phone            string           `gorm:"column:phone;size:30" json:"phone"`
	PinVerified      bool             `gorm:"column:pin_verified;default:false" json:"pin_verified"`
	WithdrawalNumber int              `gorm:"column:withdrawal_number;not null" json:"withdrawal_number"`
	TransactionId    int              `gorm:"column:transaction_id;not null;index" json:"transaction_id"`
	Comment          string           `gorm:"column:comment;type:text" json:"comment"`
	ReviewedBy       string           `gorm:"column:reviewed_by;size:150" json:"reviewed_by"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
