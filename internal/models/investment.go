package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

type Investment struct {
	ID            int              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId        int              `gorm:"column:user_id;not null;index:idx_investment_user_status" json:"user_id"`
	ProjectId     int              `gorm:"column:project_id;not null" json:"project_id"`
	Amount        decimal.Decimal  `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status        InvestmentStatus `gorm:"column:status;size:20;not null;default:active;index:idx_investment_user_status" json:"status"`
	TransactionId int              `gorm:"column:transaction_id" json:"transaction_id"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Investment) TableName() string {
	return "investments"
}
