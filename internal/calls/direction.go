package calls

import (
	"regexp"
	"strings"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = "unknown"
)

// ClientIdentityPrefix is how the provider names app-level (softphone)
// call legs, e.g. "client:u_42".
const ClientIdentityPrefix = "client:"

// pstnNumber matches a public-network number: leading + then 8-15 digits.
var pstnNumber = regexp.MustCompile(`^\+[0-9]{8,15}$`)

// IsClientIdentity reports whether leg names an app-level client.
func IsClientIdentity(leg string) bool {
	return strings.HasPrefix(leg, ClientIdentityPrefix)
}

// ClientIdentityUser strips the client prefix and returns the user id,
// or "" if leg is not a client identity.
func ClientIdentityUser(leg string) string {
	if !IsClientIdentity(leg) {
		return ""
	}
	return strings.TrimPrefix(leg, ClientIdentityPrefix)
}

// ClassifyDirection decides inbound/outbound from raw leg data, the team's
// registered number, and the provider's own direction hint, in that order.
//
// The provider's direction field conflates outbound sub-cases and is wrong
// for calls routed through client identities, so the client-identity,
// number-pattern and team-phone rules win over it.
func ClassifyDirection(from, to, providerHint, teamPhone string) Direction {
	if IsClientIdentity(from) {
		return DirectionOutbound
	}
	if pstnNumber.MatchString(from) && IsClientIdentity(to) {
		return DirectionInbound
	}
	if teamPhone != "" {
		if from == teamPhone {
			return DirectionOutbound
		}
		if to == teamPhone {
			return DirectionInbound
		}
	}
	switch {
	case strings.HasPrefix(providerHint, "outbound"):
		return DirectionOutbound
	case providerHint == "inbound":
		return DirectionInbound
	case providerHint == "":
		return DirectionUnknown
	default:
		return Direction(providerHint)
	}
}

// Known reports whether d carries a usable classification. Anything other
// than inbound/outbound is treated as unknown for persistence purposes.
func (d Direction) Known() bool {
	return d == DirectionInbound || d == DirectionOutbound
}
