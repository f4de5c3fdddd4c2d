package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/freight-bidding/repository"
)

// Auction errors
var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionClosed        = errors.New("auction closed")
	ErrAuctionNotClosed     = errors.New("auction not closed yet")
	ErrAuctionAlreadyExists = errors.New("auction already exists")
	ErrInvalidAuction       = errors.New("invalid auction")
)

// Bid errors
var (
	ErrInvalidAmount    = errors.New("invalid bid amount")
	ErrBidNotFound      = errors.New("bid not found")
	ErrInvalidCarrier   = errors.New("invalid carrier")
	ErrNotAuctionWinner = errors.New("carrier is not the auction winner")
)

// Engine errors. Race-lost outcomes are reported but never surfaced to users.
var (
	ErrClaimLost      = errors.New("auction claim lost to another worker")
	ErrLockBusy       = errors.New("auction lock held by another worker")
	ErrDuplicateAward = repository.ErrDuplicateAward
	ErrStaleClaim     = repository.ErrStaleClaim
)

// Archive errors
var (
	ErrArchiveRecordNotFound = errors.New("archive record not found")
	ErrInvalidArchiveFilter  = errors.New("invalid archive filter")
)

// ErrStorageUnavailable marks transient storage failures that callers may retry
var ErrStorageUnavailable = errors.New("storage temporarily unavailable")

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// storageError wraps an unexpected repository failure as retryable
func storageError(code, message string, err error) *BusinessError {
	return NewBusinessError(code, message, fmt.Errorf("%w: %v", ErrStorageUnavailable, err))
}

func IsAuctionNotFound(err error) bool {
	return errors.Is(err, ErrAuctionNotFound)
}

func IsAuctionClosed(err error) bool {
	return errors.Is(err, ErrAuctionClosed)
}

func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

func IsBidNotFound(err error) bool {
	return errors.Is(err, ErrBidNotFound)
}

func IsNotAuctionWinner(err error) bool {
	return errors.Is(err, ErrNotAuctionWinner)
}

func IsClaimLost(err error) bool {
	return errors.Is(err, ErrClaimLost)
}

func IsLockBusy(err error) bool {
	return errors.Is(err, ErrLockBusy)
}

func IsDuplicateAward(err error) bool {
	return errors.Is(err, ErrDuplicateAward)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsArchiveRecordNotFound(err error) bool {
	return errors.Is(err, ErrArchiveRecordNotFound)
}
