package demographics

import (
	"time"

	"gorm.io/datatypes"
)

type DemographicRecord struct {
	ID             int64             `gorm:"primaryKey;autoIncrement"`
	NaccID         string            `gorm:"column:naccid;uniqueIndex"`
	FingerprintKey string            `gorm:"column:fingerprint_key;index"`
	Fields         datatypes.JSONMap `gorm:"column:fields"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
}

func (DemographicRecord) TableName() string {
	return "demographic_fingerprints"
}
