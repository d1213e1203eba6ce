package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Agency buys inventory on behalf of its advertisers and is owned by one seller.
type Agency struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	SellerID  *snowflake.ID `gorm:"index" json:"sellerId"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Agency) TableName() string { return "agencies" }
