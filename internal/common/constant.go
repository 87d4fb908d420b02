package common

import "time"

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// UserAgentHeaderName is the metadata key holding the caller's user agent.
const UserAgentHeaderName = "user-agent"

// CookieHeaderName is the metadata key holding the raw Cookie header.
const CookieHeaderName = "cookie"

// RequestIDHeaderName is the metadata key for request correlation ids.
const RequestIDHeaderName = "x-request-id"

// EmailTokenValidity is how long an email login token stays usable, and
// also how long a pending token blocks issuing a new one.
const EmailTokenValidity = time.Hour

// CookieMaxAge is the lifetime of a login cookie in seconds (one year).
const CookieMaxAge = 31536000
