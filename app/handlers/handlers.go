// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/freight-bidding/app/dto"
	businessflow "github.com/amirphl/freight-bidding/business_flow"
	"github.com/amirphl/freight-bidding/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/sirupsen/logrus"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// responder carries the response helpers every handler shares
type responder struct {
	validator *validator.Validate
	logger    logrus.FieldLogger
}

func newResponder(logger logrus.FieldLogger) responder {
	return responder{validator: validator.New(), logger: logger}
}

func (r responder) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (r responder) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes a 400 with per-field messages on failure
func (r responder) validate(c fiber.Ctx, req any) (bool, error) {
	err := r.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return false, r.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	details := make(map[string]string, len(ves))
	for _, fe := range ves {
		details[fe.Field()] = getValidationErrorMessage(fe)
	}
	return false, r.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
}

// FlowErrorResponse maps a business flow error onto an HTTP status. Unknown
// failures are logged and reported as 500 without internals.
func (r responder) FlowErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		if businessflow.IsClaimLost(err) || businessflow.IsLockBusy(err) {
			return r.ErrorResponse(c, fiber.StatusConflict, "Auction is being closed by another worker", "AUCTION_CLOSE_IN_PROGRESS", nil)
		}
		r.logger.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error(fallbackMessage)
		return r.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
	}

	switch {
	case businessflow.IsStorageUnavailable(err):
		r.logger.WithFields(logrus.Fields{
			"path":  c.Path(),
			"code":  be.Code,
			"error": err.Error(),
		}).Warn("storage unavailable")
		c.Set("Retry-After", "1")
		return r.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable, please retry", be.Code, nil)
	case businessflow.IsAuctionNotFound(err), businessflow.IsBidNotFound(err), businessflow.IsArchiveRecordNotFound(err):
		return r.ErrorResponse(c, fiber.StatusNotFound, be.Message, be.Code, nil)
	case businessflow.IsAuctionClosed(err), businessflow.IsClaimLost(err), businessflow.IsLockBusy(err),
		errors.Is(err, businessflow.ErrAuctionNotClosed), errors.Is(err, businessflow.ErrStaleClaim):
		return r.ErrorResponse(c, fiber.StatusConflict, be.Message, be.Code, nil)
	case businessflow.IsNotAuctionWinner(err):
		return r.ErrorResponse(c, fiber.StatusForbidden, be.Message, be.Code, nil)
	case businessflow.IsInvalidAmount(err):
		return r.ErrorResponse(c, fiber.StatusUnprocessableEntity, be.Message, be.Code, nil)
	case businessflow.IsDuplicateAward(err):
		r.logger.WithField("bid_number", c.Params("bid_number")).Error("duplicate award surfaced to API")
		return r.ErrorResponse(c, fiber.StatusConflict, be.Message, be.Code, nil)
	}

	switch be.Code {
	case "INVALID_CARRIER", "INVALID_NOTES", "INVALID_DRIVER_INFO", "INVALID_AUCTION", "INVALID_ARCHIVE_FILTER":
		return r.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
	}

	r.logger.WithFields(logrus.Fields{
		"path":  c.Path(),
		"code":  be.Code,
		"error": err.Error(),
	}).Error(fallbackMessage)
	return r.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, be.Code, nil)
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

func requestID(c fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return requestid.FromContext(c)
}

// requestContext detaches business logic from the fasthttp request while
// keeping the request id for logs and events
func requestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}

func queryInt(c fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryIntPtr(c fiber.Ctx, key string) (*int, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates
func queryTime(c fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", key)
}
