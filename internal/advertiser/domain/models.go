package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Advertiser buys campaigns either directly through a seller or through an agency.
type Advertiser struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	AgencyID  *snowflake.ID `gorm:"index" json:"agencyId"`
	SellerID  *snowflake.ID `gorm:"index" json:"sellerId"`
	IsActive  bool          `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Advertiser) TableName() string { return "advertisers" }
