package demographics

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&DemographicRecord{})
}

func (r *Repository) FindMatches(ctx context.Context, fingerprint Fingerprint) ([]string, error) {
	var records []DemographicRecord
	if err := r.db.WithContext(ctx).
		Where("fingerprint_key = ?", fingerprint.Key).
		Order("created_at").
		Find(&records).Error; err != nil {
		return nil, err
	}

	naccids := make([]string, 0, len(records))
	for _, record := range records {
		naccids = append(naccids, record.NaccID)
	}
	return naccids, nil
}

func (r *Repository) Add(ctx context.Context, naccid string, fingerprint Fingerprint) error {
	fields := make(datatypes.JSONMap, len(fingerprint.Fields))
	for key, value := range fingerprint.Fields {
		fields[key] = value
	}
	record := DemographicRecord{
		NaccID:         naccid,
		FingerprintKey: fingerprint.Key,
		Fields:         fields,
		CreatedAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&record).Error
}
