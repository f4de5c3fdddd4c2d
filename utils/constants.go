package utils

import (
	"time"
)

// Context keys for request-scoped values
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	CarrierIDKey contextKey = "carrier_id"
)

// Request handling constants
const (
	// RequestTimeout bounds how long a single API request may spend in business logic
	RequestTimeout = 30 * time.Second

	// DefaultPageSize is used when a listing request omits page_size
	DefaultPageSize = 20

	// MaxPageSize caps page_size on all listing endpoints
	MaxPageSize = 100
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Currency constants
const (
	USDCurrency = "USD"
)
