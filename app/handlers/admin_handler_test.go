package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/freight-bidding/app/handlers"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAwardFlow struct {
	businessflow.AwardFlow
	err error
}

func (s *stubAwardFlow) CloseAuction(context.Context, string) (*businessflow.CloseOutcome, error) {
	return nil, s.err
}

func TestAdminHandlerCloseAuctionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter string
	}{
		{
			name:       "storage failure is retryable",
			err:        businessflow.NewBusinessError("CLOSE_AUCTION_FAILED", "Failed to close auction", fmt.Errorf("%w: %v", businessflow.ErrStorageUnavailable, errors.New("connection reset by peer"))),
			status:     fiber.StatusServiceUnavailable,
			code:       "CLOSE_AUCTION_FAILED",
			retryAfter: "1",
		},
		{
			name:   "expired claim conflicts",
			err:    businessflow.NewBusinessError("CLAIM_EXPIRED", "Close claim expired", businessflow.ErrStaleClaim),
			status: fiber.StatusConflict,
			code:   "CLAIM_EXPIRED",
		},
		{
			name:   "existing award conflicts",
			err:    businessflow.NewBusinessError("DUPLICATE_AWARD", "Auction already has an award", businessflow.ErrDuplicateAward),
			status: fiber.StatusConflict,
			code:   "DUPLICATE_AWARD",
		},
		{
			name:   "race with another closer",
			err:    businessflow.ErrClaimLost,
			status: fiber.StatusConflict,
			code:   "AUCTION_CLOSE_IN_PROGRESS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewAdminHandler(nil, &stubAwardFlow{err: tt.err}, nil, time.Hour, utils.DiscardLogger())
			app := fiber.New()
			app.Post("/auctions/:bid_number/close", h.CloseAuction)

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auctions/BN-1/close", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.retryAfter, resp.Header.Get("Retry-After"))

			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}
