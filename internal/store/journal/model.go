package journal

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DealModel 是 deals 表的一行，金额字段以 TEXT 保存 decimal 的字符串形式。
type DealModel struct {
	ID          int64           `gorm:"column:id;primaryKey"`
	DealID      string          `gorm:"column:deal_id;uniqueIndex"`
	Unit        string          `gorm:"column:unit;index"`
	Symbol      string          `gorm:"column:symbol"`
	Strategy    string          `gorm:"column:strategy"`
	Side        string          `gorm:"column:side"`
	Amount      decimal.Decimal `gorm:"column:amount;type:TEXT"`
	EntryPrice  decimal.Decimal `gorm:"column:entry_price;type:TEXT"`
	StopLoss    decimal.Decimal `gorm:"column:stop_loss;type:TEXT"`
	TakeProfit  decimal.Decimal `gorm:"column:take_profit;type:TEXT"`
	Status      string          `gorm:"column:status;index"`
	ExitPrice   decimal.Decimal `gorm:"column:exit_price;type:TEXT"`
	Profit      decimal.Decimal `gorm:"column:profit;type:TEXT"`
	CloseReason string          `gorm:"column:close_reason"`
	StopMoves   datatypes.JSON  `gorm:"column:stop_moves;type:TEXT"`
	OpenedAt    int64           `gorm:"column:opened_at"`
	ClosedAt    int64           `gorm:"column:closed_at"`
	UpdatedAt   int64           `gorm:"column:updated_at"`
}

func (DealModel) TableName() string { return "deals" }

// StopMove 是一次止损移动记录。
type StopMove struct {
	Level decimal.Decimal `json:"level"`
	At    int64           `json:"at"`
}
