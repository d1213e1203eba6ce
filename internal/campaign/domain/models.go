package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusOpen Status = "open"
	StatusWon  Status = "won"
	StatusLost Status = "lost"
)

// Probability stages a campaign moves through while it is being sold.
const (
	ProbabilityLost      = 0
	ProbabilityProspect  = 10
	ProbabilityPitched   = 35
	ProbabilityVerbal    = 65
	ProbabilityContract  = 90
	ProbabilityConfirmed = 100
)

var probabilityStages = map[int]struct{}{
	ProbabilityLost:      {},
	ProbabilityProspect:  {},
	ProbabilityPitched:   {},
	ProbabilityVerbal:    {},
	ProbabilityContract:  {},
	ProbabilityConfirmed: {},
}

func ValidProbability(p int) bool {
	_, ok := probabilityStages[p]
	return ok
}

// StatusForProbability maps a stage to the campaign status it implies.
func StatusForProbability(p int) Status {
	switch p {
	case ProbabilityConfirmed:
		return StatusWon
	case ProbabilityLost:
		return StatusLost
	default:
		return StatusOpen
	}
}

func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

type Campaign struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"type:text;not null" json:"name"`
	AdvertiserID snowflake.ID  `gorm:"not null;index" json:"advertiserId"`
	BudgetAmount int64         `gorm:"not null;default:0" json:"budgetAmount"`
	Probability  int           `gorm:"not null;default:10" json:"probability"`
	Status       Status        `gorm:"type:text;not null;default:open" json:"status"`
	StartDate    time.Time     `gorm:"type:date;not null;index" json:"startDate"`
	EndDate      time.Time     `gorm:"type:date;not null" json:"endDate"`
	CreatedBy    *snowflake.ID `json:"createdBy,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Campaign) TableName() string { return "campaigns" }

// WeightedAmount is the budget discounted by the closing probability.
func (c Campaign) WeightedAmount() int64 {
	return c.BudgetAmount * int64(c.Probability) / 100
}
