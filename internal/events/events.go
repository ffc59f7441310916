// Package events carries match lifecycle notifications from the live-match
// poller to match servers.
package events

import "context"

type Kind string

const (
	KindRoomAdded         Kind = "RoomAdded"
	KindMatchScoreChanged Kind = "MatchScoreChanged"
	KindMatchEnded        Kind = "MatchEnded"
)

type Event struct {
	Kind     Kind     `json:"kind"`
	RoomIDs  []string `json:"roomIds,omitempty"`
	MatchIDs []string `json:"matchIds,omitempty"`
}

func RoomAdded(roomIDs ...string) Event {
	return Event{Kind: KindRoomAdded, RoomIDs: roomIDs}
}

func MatchScoreChanged(matchIDs ...string) Event {
	return Event{Kind: KindMatchScoreChanged, MatchIDs: matchIDs}
}

func MatchEnded(matchIDs ...string) Event {
	return Event{Kind: KindMatchEnded, MatchIDs: matchIDs}
}

// Bus is a publish/subscribe channel for lifecycle events. Subscription
// channels are closed once the subscribing context is done.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context) (<-chan Event, error)
}
