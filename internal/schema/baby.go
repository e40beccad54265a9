package schema

import "time"

// Baby 宝宝档案
type Baby struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	BirthDate string    `gorm:"size:10" json:"birth_date"` // YYYY-MM-DD
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Baby) TableName() string {
	return "babies"
}
