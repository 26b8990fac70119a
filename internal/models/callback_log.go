package models

import (
	"time"
)

type CallbackLog struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Source        string    `gorm:"column:source;size:100" json:"source"`
	TransactionId int       `gorm:"column:transaction_id;index" json:"transaction_id"`
	Request       string    `gorm:"column:request;type:text" json:"request"`
	Response      string    `gorm:"column:response;type:text" json:"response"`
	Status        int       `gorm:"column:status;default:0" json:"status"` // 1: success, 2: failed
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}
