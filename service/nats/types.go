package nats

import (
	"fmt"
	"time"
)

// LegOutcome is the wire form of one redistribution leg's terminal state.
type LegOutcome struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Outcome     string `json:"outcome"`
	Signature   string `json:"signature,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RedistributionEvent is published after every processed redistribution,
// including ones with failed or timed out legs. Destination is the token
// account that received the incoming transfer.
type RedistributionEvent struct {
	Signature   string       `json:"signature"`
	Destination string       `json:"destination"`
	Amount      uint64       `json:"amount"`
	BlockTime   time.Time    `json:"block_time"`
	ProcessedAt time.Time    `json:"processed_at"`
	Legs        []LegOutcome `json:"legs"`
}

// Subject returns the JetStream subject for this event.
func (e *RedistributionEvent) Subject() string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, e.Destination)
}
