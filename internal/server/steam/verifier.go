// Package steam verifies Steam OpenID 2.0 login callbacks.
package steam

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultEndpoint is Steam's OpenID provider.
const DefaultEndpoint = "https://steamcommunity.com/openid/login"

var (
	ErrInvalidCallback = errors.New("invalid openid callback")
	ErrNotVerified     = errors.New("openid assertion not verified")
)

var claimedIDPattern = regexp.MustCompile(`^https://steamcommunity.com/openid/id/([0-9]+)$`)

// Verifier turns inbound callback parameters into a verified Steam id.
type Verifier interface {
	Verify(ctx context.Context, params url.Values) (string, error)
}

// Fields the provider must have signed for an assertion to be accepted.
var requiredSigned = []string{"op_endpoint", "claimed_id", "identity", "return_to"}

// OpenIDVerifier asks the provider to confirm an assertion
// (openid.mode=check_authentication). Assertions addressed to another
// relying party are rejected before the provider is contacted.
type OpenIDVerifier struct {
	httpClient *resty.Client
	endpoint   string
	returnTo   string
}

// NewOpenIDVerifier creates a verifier for the provider at endpoint that only
// accepts callbacks whose openid.return_to lies under returnTo.
func NewOpenIDVerifier(endpoint, returnTo string) *OpenIDVerifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "text/plain")

	return &OpenIDVerifier{
		httpClient: client,
		endpoint:   endpoint,
		returnTo:   strings.TrimRight(returnTo, "/"),
	}
}

// SteamID extracts the Steam id from an openid.claimed_id value.
func SteamID(claimedID string) (string, bool) {
	m := claimedIDPattern.FindStringSubmatch(claimedID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (v *OpenIDVerifier) Verify(ctx context.Context, params url.Values) (string, error) {
	if params.Get("openid.mode") != "id_res" {
		return "", fmt.Errorf("%w: mode %q", ErrInvalidCallback, params.Get("openid.mode"))
	}
	steamID, ok := SteamID(params.Get("openid.claimed_id"))
	if !ok {
		return "", fmt.Errorf("%w: claimed id %q", ErrInvalidCallback, params.Get("openid.claimed_id"))
	}
	if params.Get("openid.identity") != params.Get("openid.claimed_id") {
		return "", fmt.Errorf("%w: identity differs from claimed id", ErrInvalidCallback)
	}
	if op := params.Get("openid.op_endpoint"); op != v.endpoint {
		return "", fmt.Errorf("%w: op endpoint %q", ErrInvalidCallback, op)
	}
	if rt := params.Get("openid.return_to"); !v.ownsReturnTo(rt) {
		return "", fmt.Errorf("%w: return_to %q", ErrInvalidCallback, rt)
	}
	if f, ok := missingSigned(params.Get("openid.signed")); !ok {
		return "", fmt.Errorf("%w: %s is not signed", ErrInvalidCallback, f)
	}

	form := url.Values{}
	for k, vs := range params {
		if strings.HasPrefix(k, "openid.") {
			form[k] = vs
		}
	}
	form.Set("openid.mode", "check_authentication")

	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(v.endpoint)
	if err != nil {
		return "", fmt.Errorf("openid check_authentication: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("openid check_authentication: status %d", resp.StatusCode())
	}

	if keyValues(resp.String())["is_valid"] != "true" {
		return "", ErrNotVerified
	}
	return steamID, nil
}

func (v *OpenIDVerifier) ownsReturnTo(rt string) bool {
	if v.returnTo == "" || rt == "" {
		return false
	}
	return rt == v.returnTo ||
		strings.HasPrefix(rt, v.returnTo+"/") ||
		strings.HasPrefix(rt, v.returnTo+"?")
}

// missingSigned reports the first required field absent from the
// comma-separated openid.signed list.
func missingSigned(signed string) (string, bool) {
	have := make(map[string]bool)
	for _, f := range strings.Split(signed, ",") {
		have[strings.TrimSpace(f)] = true
	}
	for _, f := range requiredSigned {
		if !have[f] {
			return f, false
		}
	}
	return "", true
}

// keyValues parses the OpenID key-value form ("key:value" lines).
func keyValues(body string) map[string]string {
	kv := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok {
			kv[k] = v
		}
	}
	return kv
}
