package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBidStatusEligible(t *testing.T) {
	tests := []struct {
		status   BidStatus
		eligible bool
	}{
		{BidStatusPending, true},
		{BidStatusCountered, true},
		{BidStatusAccepted, true},
		{BidStatusRejected, false},
		{BidStatusWithdrawn, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.True(t, tt.status.Valid())
			assert.Equal(t, tt.eligible, tt.status.Eligible())
			assert.Equal(t, tt.eligible, (&CarrierBid{Status: tt.status}).IsEligible())
		})
	}

	assert.False(t, BidStatus("lost").Valid())
	_, err := BidStatus("lost").Value()
	assert.Error(t, err)
}

func TestCarrierBidBeforeCreate(t *testing.T) {
	bid := &CarrierBid{AuctionID: 1, CarrierID: "carrier-1", AmountCents: 45000}
	require.NoError(t, bid.BeforeCreate(nil))

	assert.NotEqual(t, uuid.Nil, bid.UUID)
	assert.Equal(t, BidStatusPending, bid.Status)
	assert.False(t, bid.SubmittedAt.IsZero())
	assert.Equal(t, bid.SubmittedAt, bid.CreatedAt)
	assert.True(t, bid.IsLive())
}

func TestCarrierBidDriver(t *testing.T) {
	bid := &CarrierBid{}
	info, err := bid.Driver()
	require.NoError(t, err)
	assert.Nil(t, info)

	raw, err := json.Marshal(DriverInfo{DriverName: "Sam Ortiz", TruckNumber: "T-88"})
	require.NoError(t, err)
	bid.DriverInfo = raw

	info, err = bid.Driver()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Sam Ortiz", info.DriverName)
	assert.Equal(t, "T-88", info.TruckNumber)

	bid.DriverInfo = json.RawMessage(`{"driver_name":`)
	_, err = bid.Driver()
	assert.Error(t, err)
}
