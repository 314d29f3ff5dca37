package identifiers

import (
	"context"
	"errors"
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
	"gorm.io/gorm"
)

// Repository is the postgres-backed Store. The unique indexes on
// center_links(adcid, ptid) and participants(guid) enforce the
// uniqueness invariants at the storage layer; gorm's TranslateError
// surfaces violations as gorm.ErrDuplicatedKey.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Participant{}, &CenterLink{})
}

func (r *Repository) LookupByCenterIdentity(ctx context.Context, identity models.CenterIdentity) (*IdentifierRecord, error) {
	var link CenterLink
	err := r.db.WithContext(ctx).
		Where("adcid = ? AND ptid = ?", identity.ADCID, identity.PTID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.load(ctx, link.NaccID)
}

func (r *Repository) LookupByGUID(ctx context.Context, guid string) (*IdentifierRecord, error) {
	if guid == "" {
		return nil, ErrNotFound
	}
	var participant Participant
	err := r.db.WithContext(ctx).Where("guid = ?", guid).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.load(ctx, participant.NaccID)
}

func (r *Repository) LookupByNACCID(ctx context.Context, naccid string) (*IdentifierRecord, error) {
	seq, err := ParseNACCID(naccid)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.load(ctx, seq)
}

func (r *Repository) ListByCenter(ctx context.Context, adcid int) ([]IdentifierRecord, error) {
	var links []CenterLink
	if err := r.db.WithContext(ctx).
		Where("adcid = ?", adcid).
		Order("created_at").
		Find(&links).Error; err != nil {
		return nil, err
	}

	records := make([]IdentifierRecord, 0, len(links))
	for _, link := range links {
		record, err := r.load(ctx, link.NaccID)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

func (r *Repository) Create(ctx context.Context, identity models.CenterIdentity, guid string) (*IdentifierRecord, error) {
	var created Participant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = Participant{CreatedAt: time.Now().UTC()}
		if guid != "" {
			created.GUID = &guid
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return r.duplicateGUID(ctx, guid)
			}
			return err
		}

		link := CenterLink{
			NaccID:    created.NaccID,
			ADCID:     identity.ADCID,
			PTID:      identity.PTID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return r.duplicateIdentity(ctx, identity)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.load(ctx, created.NaccID)
}

func (r *Repository) AddCenterIdentity(ctx context.Context, naccid string, identity models.CenterIdentity) (*IdentifierRecord, error) {
	seq, err := ParseNACCID(naccid)
	if err != nil {
		return nil, ErrNotFound
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var participant Participant
		if err := tx.First(&participant, "nacc_id = ?", seq).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing CenterLink
		err := tx.Where("adcid = ? AND ptid = ?", identity.ADCID, identity.PTID).
			First(&existing).Error
		if err == nil {
			if existing.NaccID == seq {
				// Already linked; confirming a transfer twice is a no-op.
				return nil
			}
			return &DuplicateIdentityError{
				Identity: &identity,
				NACCID:   FormatNACCID(existing.NaccID),
			}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Model(&CenterLink{}).
			Where("nacc_id = ? AND active", seq).
			Update("active", false).Error; err != nil {
			return err
		}

		link := CenterLink{
			NaccID:    seq,
			ADCID:     identity.ADCID,
			PTID:      identity.PTID,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return r.duplicateIdentity(ctx, identity)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.load(ctx, seq)
}

func (r *Repository) load(ctx context.Context, seq int64) (*IdentifierRecord, error) {
	var participant Participant
	err := r.db.WithContext(ctx).First(&participant, "nacc_id = ?", seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var links []CenterLink
	if err := r.db.WithContext(ctx).
		Where("nacc_id = ?", seq).
		Order("created_at").
		Find(&links).Error; err != nil {
		return nil, err
	}

	record := &IdentifierRecord{NACCID: FormatNACCID(participant.NaccID)}
	if participant.GUID != nil {
		record.GUID = *participant.GUID
	}
	for _, link := range links {
		identity := models.CenterIdentity{ADCID: link.ADCID, PTID: link.PTID}
		if link.Active {
			record.ActiveIdentity = identity
		} else {
			record.History = append(record.History, identity)
		}
	}
	return record, nil
}

func (r *Repository) duplicateIdentity(ctx context.Context, identity models.CenterIdentity) error {
	dup := &DuplicateIdentityError{Identity: &identity}
	if existing, err := r.LookupByCenterIdentity(ctx, identity); err == nil {
		dup.NACCID = existing.NACCID
	}
	return dup
}

func (r *Repository) duplicateGUID(ctx context.Context, guid string) error {
	dup := &DuplicateIdentityError{GUID: guid}
	if existing, err := r.LookupByGUID(ctx, guid); err == nil {
		dup.NACCID = existing.NACCID
	}
	return dup
}
