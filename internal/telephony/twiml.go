package telephony

import (
	"errors"
	"net/url"

	"github.com/twilio/twilio-go/twiml"
)

// CallControl renders the provider's call-control markup. The callback
// URLs it registers carry user_id/team_id query parameters so the status
// webhooks can attribute legs without the provider knowing about users.
type CallControl struct {
	// CallbackBase is the externally reachable base URL of this service,
	// e.g. "https://phone.example.com".
	CallbackBase string

	// DefaultClientIdentity is rung when an inbound call reaches a team
	// with no users; operability fallback for misconfigured teams.
	DefaultClientIdentity string
}

const statusEvents = "initiated ringing answered completed"

// OutboundDial renders markup that dials a PSTN destination on behalf of a
// user, registers status and recording callbacks, and records both channels
// from answer.
func (c CallControl) OutboundDial(to, callerID, userID, teamID string) (string, error) {
	if to == "" {
		return "", errors.New("telephony: destination required")
	}
	dial := &twiml.VoiceDial{
		CallerId:                     callerID,
		Record:                       "record-from-answer-dual",
		RecordingStatusCallback:      c.callbackURL("/twilio/recording", userID, teamID),
		RecordingStatusCallbackEvent: "completed",
		InnerElements: []twiml.Element{
			&twiml.VoiceNumber{
				PhoneNumber:          to,
				StatusCallback:       c.callbackURL("/twilio/call-status", userID, teamID),
				StatusCallbackEvent:  statusEvents,
				StatusCallbackMethod: "POST",
			},
		},
	}
	return twiml.Voice([]twiml.Element{dial})
}

// InboundFanout renders markup that rings every given client identity for
// the team that owns the dialed number. Each leg's status callback carries
// the team id plus that leg's own identity as user_id, so even a leg that
// never answers (a missed fan-out child) arrives attributable.
func (c CallControl) InboundFanout(callerNumber, teamID string, identities []string) (string, error) {
	if len(identities) == 0 && c.DefaultClientIdentity != "" {
		identities = []string{c.DefaultClientIdentity}
	}
	if len(identities) == 0 {
		return "", errors.New("telephony: no identities to ring")
	}

	clients := make([]twiml.Element, 0, len(identities))
	for _, identity := range identities {
		clients = append(clients, &twiml.VoiceClient{
			Identity:             identity,
			StatusCallback:       c.callbackURL("/twilio/call-status", identity, teamID),
			StatusCallbackEvent:  statusEvents,
			StatusCallbackMethod: "POST",
		})
	}

	dial := &twiml.VoiceDial{
		CallerId:                     callerNumber,
		AnswerOnBridge:               "true",
		Record:                       "record-from-answer-dual",
		RecordingStatusCallback:      c.callbackURL("/twilio/recording", "", teamID),
		RecordingStatusCallbackEvent: "completed",
		InnerElements:                clients,
	}
	return twiml.Voice([]twiml.Element{dial})
}

func (c CallControl) callbackURL(path, userID, teamID string) string {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if teamID != "" {
		q.Set("team_id", teamID)
	}
	u := c.CallbackBase + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
