package identifiers

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/naccdata/identifier-provisioning/pkg/common/models"
)

var naccidPattern = regexp.MustCompile(`^NACC\d{6}$`)

// FormatNACCID renders the numeric participant sequence as the
// program-wide identifier, e.g. 1 -> "NACC000001".
func FormatNACCID(seq int64) string {
	return fmt.Sprintf("NACC%06d", seq)
}

// ParseNACCID extracts the numeric sequence from a NACCID string.
func ParseNACCID(naccid string) (int64, error) {
	if !naccidPattern.MatchString(naccid) {
		return 0, fmt.Errorf("invalid NACCID %q", naccid)
	}
	return strconv.ParseInt(naccid[4:], 10, 64)
}

// IsValidNACCID reports whether the string is a well-formed NACCID.
func IsValidNACCID(naccid string) bool {
	return naccidPattern.MatchString(naccid)
}

// IdentifierRecord is the provisioned identity of one participant:
// the immutable NACCID, the optional GUID, the center identity currently
// active, and the identities held at previous centers.
type IdentifierRecord struct {
	NACCID         string                  `json:"naccid"`
	GUID           string                  `json:"guid,omitempty"`
	ActiveIdentity models.CenterIdentity   `json:"active_identity"`
	History        []models.CenterIdentity `json:"history,omitempty"`
}

// Participant holds the NACCID sequence and the GUID claim. One row per
// human, created exactly once and never deleted.
type Participant struct {
	NaccID    int64     `gorm:"column:nacc_id;primaryKey;autoIncrement"`
	GUID      *string   `gorm:"column:guid;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Participant) TableName() string {
	return "participants"
}

// CenterLink associates a center identity with a participant. The
// unique index over (adcid, ptid) is what makes check-and-create atomic
// under concurrent submissions.
type CenterLink struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	NaccID    int64     `gorm:"column:nacc_id;index"`
	ADCID     int       `gorm:"column:adcid;uniqueIndex:idx_center_identity"`
	PTID      string    `gorm:"column:ptid;uniqueIndex:idx_center_identity"`
	Active    bool      `gorm:"column:active"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (CenterLink) TableName() string {
	return "center_links"
}
