package device

import (
	"maps"
	"slices"
	"time"

	"github.com/muurk/signctl/internal/protocol"
)

// Status is the latest heartbeat reply merged over earlier ones. Sign
// entries are upserted, so a sign missing from one reply keeps its last
// known record.
type Status struct {
	Online               bool                         `json:"online"`
	ApplicationErrorCode byte                         `json:"applicationErrorCode"`
	Timestamp            time.Time                    `json:"timestamp"`
	ControllerChecksum   uint16                       `json:"controllerChecksum"`
	ControllerErrorCode  byte                         `json:"controllerErrorCode"`
	Signs                map[byte]protocol.SignStatus `json:"signs"`
	Updated              time.Time                    `json:"updated"`
}

// apply merges a heartbeat reply into s.
func (s *Status) apply(r *protocol.SignStatusReply, now time.Time) {
	s.Online = r.Online
	s.ApplicationErrorCode = r.ApplicationErrorCode
	s.Timestamp = r.Timestamp.Time()
	s.ControllerChecksum = r.ControllerChecksum
	s.ControllerErrorCode = r.ControllerErrorCode
	if s.Signs == nil {
		s.Signs = make(map[byte]protocol.SignStatus, len(r.Signs))
	}
	for _, sign := range r.Signs {
		s.Signs[sign.SignID] = sign
	}
	s.Updated = now
}

func (s *Status) clone() *Status {
	if s == nil {
		return nil
	}
	c := *s
	c.Signs = maps.Clone(s.Signs)
	return &c
}

// Faulted returns the ids of signs reporting a non-zero error code.
func (s *Status) Faulted() []byte {
	var ids []byte
	for id, sign := range s.Signs {
		if sign.ErrorCode != 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// EventKind classifies supervisor events.
type EventKind string

// Event kinds
const (
	EventState         EventKind = "state"
	EventStatus        EventKind = "status"
	EventConfiguration EventKind = "configuration"
	EventError         EventKind = "error"
)

// Event is published whenever a supervisor changes state, receives a status
// or configuration reply, or gives up on a session.
type Event struct {
	Device string    `json:"device"`
	Kind   EventKind `json:"kind"`
	Time   time.Time `json:"time"`
	State  string    `json:"state,omitempty"`
	From   string    `json:"from,omitempty"`
	Status *Status   `json:"status,omitempty"`
	Signs  int       `json:"signs,omitempty"`
	Error  string    `json:"error,omitempty"`
}
