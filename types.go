package flybeth

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ibraheemosule/flybeth-sub002/credential"
	"github.com/ibraheemosule/flybeth-sub002/internal/events"
)

// Event is the lifecycle event delivered to a configured [EventSink].
type Event = events.Event

// EventSink receives lifecycle events asynchronously.
type EventSink = events.Sink

// NoOpEventSink drops events.
type NoOpEventSink = events.NoOpSink

// NewJSONEventSink returns a sink writing one JSON object per line to w.
func NewJSONEventSink(w io.Writer) EventSink {
	return events.NewJSONWriterSink(w)
}

// Lifecycle event types, re-exported for sink implementations.
const (
	EventPairInstalled    = events.TypePairInstalled
	EventRefreshSucceeded = events.TypeRefreshSucceeded
	EventRefreshFailed    = events.TypeRefreshFailed
	EventLoggedOut        = events.TypeLoggedOut
	EventForcedLogout     = events.TypeForcedLogout
	EventMonitorStopped   = events.TypeMonitorStopped
)

// ReasonSessionExpired is the forced-logout reason used when the monitor
// cannot refresh a session any further.
const ReasonSessionExpired = "session-expired"

/*
====================================
WIRE TYPES
====================================
*/

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Message      string `json:"message,omitempty"`
}

// LoginUser is the caller-facing identity block of a login response. The
// coordinator does not interpret it.
type LoginUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type loginResponse struct {
	Success bool `json:"success"`
	Data    struct {
		User         LoginUser `json:"user"`
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// ParseLoginResponse extracts the credential pair and user block from a
// login response body, for callers that authenticate out-of-band and
// install the result with [Coordinator.Install].
func ParseLoginResponse(body []byte) (credential.Pair, LoginUser, error) {
	var decoded loginResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return credential.Pair{}, LoginUser{}, err
	}
	if !decoded.Success {
		if decoded.Message != "" {
			return credential.Pair{}, LoginUser{}, errors.New("login rejected: " + decoded.Message)
		}
		return credential.Pair{}, LoginUser{}, errors.New("login rejected")
	}

	pair := credential.Pair{
		AccessToken:  decoded.Data.AccessToken,
		RefreshToken: decoded.Data.RefreshToken,
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return credential.Pair{}, LoginUser{}, errors.New("login response missing tokens")
	}
	return pair, decoded.Data.User, nil
}
