// Package models contains the persisted entities of the auction engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/freight-bidding/utils"
	"gorm.io/gorm"
)

// BiddingWindow is how long an auction accepts bids after it was received.
// Every participant derives the close instant from the same anchor, so this is not configurable.
const BiddingWindow = 25 * time.Minute

// UnknownStateTag is used in archive records for auctions posted without a tag
const UnknownStateTag = "UNKNOWN"

// AuctionStatus represents the persisted lifecycle state of an auction
type AuctionStatus string

const (
	AuctionStatusOpen    AuctionStatus = "open"
	AuctionStatusClosing AuctionStatus = "closing"
	AuctionStatusClosed  AuctionStatus = "closed"
)

// String returns the string representation of the status
func (s AuctionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AuctionStatus) Valid() bool {
	switch s {
	case AuctionStatusOpen, AuctionStatusClosing, AuctionStatusClosed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AuctionStatus
func (s *AuctionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = AuctionStatus(v)
	case []byte:
		*s = AuctionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AuctionStatus", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AuctionStatus
func (s AuctionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AuctionStatus: %s", s)
	}
	return string(s), nil
}

// AuctionOutcome is set once an auction reaches the closed state
type AuctionOutcome string

const (
	AuctionOutcomeAwarded   AuctionOutcome = "awarded"
	AuctionOutcomeUnawarded AuctionOutcome = "unawarded"
)

func (o AuctionOutcome) String() string {
	return string(o)
}

func (o AuctionOutcome) Valid() bool {
	return o == AuctionOutcomeAwarded || o == AuctionOutcomeUnawarded
}

// Scan implements the sql.Scanner interface for AuctionOutcome
func (o *AuctionOutcome) Scan(value any) error {
	if value == nil {
		*o = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*o = AuctionOutcome(v)
	case []byte:
		*o = AuctionOutcome(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AuctionOutcome", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AuctionOutcome
func (o AuctionOutcome) Value() (driver.Value, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid AuctionOutcome: %s", o)
	}
	return string(o), nil
}

// StopList is the ordered list of stop locations, stored as a JSON array
type StopList []string

// Value implements the driver.Valuer interface for StopList
func (s StopList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for StopList
func (s *StopList) Scan(value any) error {
	if value == nil {
		*s = StopList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StopList", value)
	}
	var stops []string
	if err := json.Unmarshal(bytes, &stops); err != nil {
		return err
	}
	*s = stops
	return nil
}

// Auction is one freight load posted for carrier bidding
type Auction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	BidNumber      string          `gorm:"size:64;not null;uniqueIndex:uk_auctions_bid_number" json:"bid_number"`
	DistanceMiles  *int            `gorm:"index:idx_auctions_distance_miles" json:"distance_miles,omitempty"`
	PickupAt       *time.Time      `json:"pickup_at,omitempty"`
	DeliveryAt     *time.Time      `json:"delivery_at,omitempty"`
	Stops          StopList        `gorm:"type:text;not null" json:"stops"`
	Tag            *string         `gorm:"size:32;index:idx_auctions_tag" json:"tag,omitempty"`
	SourceChannel  *string         `gorm:"size:128" json:"source_channel,omitempty"`
	ReceivedAt     time.Time       `gorm:"not null;index:idx_auctions_received_at" json:"received_at"`
	WindowClosesAt time.Time       `gorm:"not null;index:idx_auctions_status_window,priority:2" json:"window_closes_at"`
	Status         AuctionStatus   `gorm:"size:16;not null;index:idx_auctions_status_window,priority:1" json:"status"`
	Outcome        *AuctionOutcome `gorm:"size:16" json:"outcome,omitempty"`
	ClaimToken     *string         `gorm:"size:64" json:"-"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	ClaimAttempts  int             `gorm:"not null;default:0" json:"claim_attempts"`
	ClosedAt       *time.Time      `gorm:"index:idx_auctions_closed_at" json:"closed_at,omitempty"`
	ArchivedAt     *time.Time      `gorm:"index:idx_auctions_archived_at" json:"archived_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for the model
func (Auction) TableName() string {
	return "auctions"
}

// BeforeCreate derives the window close instant and fills defaults
func (a *Auction) BeforeCreate(tx *gorm.DB) error {
	a.ReceivedAt = a.ReceivedAt.UTC()
	a.WindowClosesAt = WindowCloseFor(a.ReceivedAt)
	if a.Status == "" {
		a.Status = AuctionStatusOpen
	}
	if a.Stops == nil {
		a.Stops = StopList{}
	}
	now := utils.UTCNow()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	return nil
}

// WindowCloseFor returns the instant bidding closes for an auction received at receivedAt
func WindowCloseFor(receivedAt time.Time) time.Time {
	return receivedAt.UTC().Add(BiddingWindow)
}

// IsOpenAt reports whether the auction accepts bid mutations at now
func (a *Auction) IsOpenAt(now time.Time) bool {
	return a.Status == AuctionStatusOpen && a.ArchivedAt == nil && now.Before(a.WindowClosesAt)
}

// IsClosed reports whether the award decision has been made
func (a *Auction) IsClosed() bool {
	return a.Status == AuctionStatusClosed
}

// IsArchived reports whether the archive pipeline already processed the auction
func (a *Auction) IsArchived() bool {
	return a.ArchivedAt != nil
}

// StateTag returns the upper-cased tag, or UnknownStateTag when absent
func (a *Auction) StateTag() string {
	if a.Tag == nil || strings.TrimSpace(*a.Tag) == "" {
		return UnknownStateTag
	}
	return strings.ToUpper(strings.TrimSpace(*a.Tag))
}

// AuctionFilter represents filter criteria for auction queries
type AuctionFilter struct {
	ID             *uint
	BidNumber      *string
	BidNumberLike  *string
	Tag            *string
	Status         *AuctionStatus
	Outcome        *AuctionOutcome
	Archived       *bool
	ClosesAfter    *time.Time
	ReceivedAfter  *time.Time
	ReceivedBefore *time.Time
}
