// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	"github.com/amirphl/freight-bidding/models"
	"github.com/amirphl/freight-bidding/repository"
	"github.com/amirphl/freight-bidding/utils"
)

// ClientMetadata holds client-related information recorded with lifecycle events
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// auctionEvent describes one lifecycle entry before it is persisted
type auctionEvent struct {
	auction     *models.Auction
	eventType   string
	carrierID   *string
	amountCents *int64
	extra       map[string]any
}

// recordEvent appends an entry to the auction's lifecycle log using ctx, so it joins
// the caller's transaction when there is one
func recordEvent(ctx context.Context, repo repository.AuctionEventRepository, ev auctionEvent, metadata *ClientMetadata, now time.Time) error {
	if repo == nil {
		return nil
	}

	row := &models.AuctionEvent{
		AuctionID:   ev.auction.ID,
		BidNumber:   ev.auction.BidNumber,
		Type:        ev.eventType,
		CarrierID:   ev.carrierID,
		AmountCents: ev.amountCents,
		CreatedAt:   now,
	}

	payload := map[string]any{}
	for k, v := range ev.extra {
		payload[k] = v
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			payload["ip_address"] = metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			payload["user_agent"] = metadata.UserAgent
		}
		if metadata.RequestID != "" {
			row.RequestID = utils.ToPtr(metadata.RequestID)
		}
	}
	if row.RequestID == nil {
		if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
			row.RequestID = &requestID
		}
	}
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		row.Metadata = raw
	}

	return repo.Save(ctx, row)
}

// ToAuctionDTO converts an auction to its public view as seen at now
func ToAuctionDTO(a *models.Auction, now time.Time) dto.AuctionDTO {
	out := dto.AuctionDTO{
		ID:              a.ID,
		BidNumber:       a.BidNumber,
		DistanceMiles:   a.DistanceMiles,
		PickupAt:        utils.FormatRFC3339Ptr(a.PickupAt),
		DeliveryAt:      utils.FormatRFC3339Ptr(a.DeliveryAt),
		Stops:           []string(a.Stops),
		StopsCount:      len(a.Stops),
		Tag:             a.Tag,
		SourceChannel:   a.SourceChannel,
		ReceivedAt:      a.ReceivedAt.UTC().Format(time.RFC3339),
		WindowClosesAt:  a.WindowClosesAt.UTC().Format(time.RFC3339),
		Status:          a.Status.String(),
		IsOpen:          a.IsOpenAt(now),
		ClosedAt:        utils.FormatRFC3339Ptr(a.ClosedAt),
		ArchivedAt:      utils.FormatRFC3339Ptr(a.ArchivedAt),
		TimeLeftSeconds: 0,
	}
	if out.Stops == nil {
		out.Stops = []string{}
	}
	if a.Outcome != nil {
		out.Outcome = utils.ToPtr(a.Outcome.String())
	}
	if out.IsOpen {
		out.TimeLeftSeconds = utils.SecondsUntil(now, a.WindowClosesAt)
	}
	return out
}

// withAggregate fills bid count and lowest amount on an auction view
func withAggregate(out dto.AuctionDTO, agg repository.BidAggregate) dto.AuctionDTO {
	out.BidsCount = agg.BidsCount
	out.LowestAmountCents = agg.LowestCents
	if agg.LowestCents != nil {
		out.LowestAmount = utils.ToPtr(utils.CentsToDollars(*agg.LowestCents))
	}
	return out
}

// ToBidDTO converts a carrier bid to its view
func ToBidDTO(b *models.CarrierBid) dto.BidDTO {
	out := dto.BidDTO{
		ID:                 b.ID,
		UUID:               b.UUID.String(),
		BidNumber:          b.BidNumber,
		CarrierID:          b.CarrierID,
		AmountCents:        b.AmountCents,
		Amount:             utils.CentsToDollars(b.AmountCents),
		CounterAmountCents: b.CounterAmountCents,
		Status:             b.Status.String(),
		Notes:              b.Notes,
		SubmittedAt:        b.SubmittedAt.UTC().Format(time.RFC3339),
		WithdrawnAt:        utils.FormatRFC3339Ptr(b.WithdrawnAt),
		CreatedAt:          b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if info, err := b.Driver(); err == nil && info != nil {
		out.DriverInfo = &dto.DriverInfoDTO{
			DriverName:    info.DriverName,
			DriverPhone:   info.DriverPhone,
			TruckNumber:   info.TruckNumber,
			TrailerNumber: info.TrailerNumber,
			EquipmentType: info.EquipmentType,
			Notes:         info.Notes,
		}
	}
	return out
}

// ToAwardDTO converts an award to its view
func ToAwardDTO(a *models.AuctionAward) dto.AwardDTO {
	return dto.AwardDTO{
		BidNumber:         a.BidNumber,
		BidID:             a.BidID,
		WinnerCarrierID:   a.WinnerCarrierID,
		WinnerAmountCents: a.WinnerAmountCents,
		WinnerAmount:      utils.CentsToDollars(a.WinnerAmountCents),
		AwardedBy:         a.AwardedBy,
		AwardedAt:         a.AwardedAt.UTC().Format(time.RFC3339),
	}
}

// ToArchivedAuctionDTO converts an archive record to its view. Bids are included only when withBids is set.
func ToArchivedAuctionDTO(r *models.ArchivedAuction, withBids bool) dto.ArchivedAuctionDTO {
	out := dto.ArchivedAuctionDTO{
		BidNumber:          r.BidNumber,
		DistanceMiles:      r.DistanceMiles,
		PickupAt:           utils.FormatRFC3339Ptr(r.PickupAt),
		DeliveryAt:         utils.FormatRFC3339Ptr(r.DeliveryAt),
		Stops:              []string(r.Stops),
		Tag:                r.Tag,
		StateTag:           r.StateTag,
		SourceChannel:      r.SourceChannel,
		ReceivedAt:         r.ReceivedAt.UTC().Format(time.RFC3339),
		ClosedAt:           r.ClosedAt.UTC().Format(time.RFC3339),
		ArchivedAt:         r.ArchivedAt.UTC().Format(time.RFC3339),
		HoursActive:        r.HoursActive,
		Outcome:            r.Outcome.String(),
		WinnerCarrierID:    r.WinnerCarrierID,
		WinnerAmountCents:  r.WinnerAmountCents,
		BidCount:           r.BidCount,
		TotalBidCount:      r.TotalBidCount,
		LowestAmountCents:  r.LowestAmountCents,
		HighestAmountCents: r.HighestAmountCents,
		AverageAmountCents: r.AverageAmountCents,
	}
	if out.Stops == nil {
		out.Stops = []string{}
	}
	if withBids {
		out.Bids = make([]dto.ArchivedBidDTO, 0, len(r.Bids))
		for _, b := range r.Bids {
			out.Bids = append(out.Bids, dto.ArchivedBidDTO{
				CarrierID:   b.CarrierID,
				AmountCents: b.AmountCents,
				Amount:      utils.CentsToDollars(b.AmountCents),
				Status:      b.Status.String(),
				Notes:       b.Notes,
				SubmittedAt: b.SubmittedAt.UTC().Format(time.RFC3339),
				WithdrawnAt: utils.FormatRFC3339Ptr(b.WithdrawnAt),
			})
		}
	}
	return out
}

// ToAuctionEventDTO converts a lifecycle entry to its view
func ToAuctionEventDTO(e *models.AuctionEvent) dto.AuctionEventDTO {
	out := dto.AuctionEventDTO{
		ID:          e.ID,
		Type:        e.Type,
		CarrierID:   e.CarrierID,
		AmountCents: e.AmountCents,
		RequestID:   e.RequestID,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(e.Metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(e.Metadata, &meta); err == nil {
			out.Metadata = meta
		}
	}
	return out
}
