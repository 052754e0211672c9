package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints browser voice access tokens. The token is a standard
// JWT signed with the API key secret; the grants claim tells the provider
// which client identity may place and receive calls.
type TokenIssuer struct {
	AccountSID  string
	APIKeySID   string
	APIKeySecret string
	TwiMLAppSID string
	TTL         time.Duration
}

const defaultTokenTTL = time.Hour

// IssueVoiceToken returns a signed access token for the given client
// identity, valid for the issuer's TTL.
func (i TokenIssuer) IssueVoiceToken(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("telephony: identity required")
	}
	if i.AccountSID == "" || i.APIKeySID == "" || i.APIKeySecret == "" {
		return "", errors.New("telephony: token credentials not configured")
	}

	ttl := i.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now()

	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", i.APIKeySID, now.Unix()),
		"iss": i.APIKeySID,
		"sub": i.AccountSID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"grants": map[string]any{
			"identity": identity,
			"voice": map[string]any{
				"incoming": map[string]any{"allow": true},
				"outgoing": map[string]any{"application_sid": i.TwiMLAppSID},
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = "twilio-fpa;v=1"
	return token.SignedString([]byte(i.APIKeySecret))
}
