// Package notify delivers large-win announcements out of band. Settlement
// submits to a bounded Dispatcher and never waits on, or fails because of, a
// notifier.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Win describes a settled wager worth announcing
type Win struct {
	RoundID    string    `json:"roundId"`
	PlayerID   string    `json:"playerId"`
	Game       string    `json:"game"`
	Bet        int64     `json:"bet"`
	Payout     int64     `json:"payout"`
	Multiplier float64   `json:"multiplier"`
	Jackpot    bool      `json:"jackpot"`
	At         time.Time `json:"at"`
}

// Notifier delivers a win to one channel
type Notifier interface {
	Name() string
	Notify(ctx context.Context, w Win) error
}

// Announcer fans a win out to every notifier, one dispatcher task each, so a
// slow or failing channel never holds up the others.
type Announcer struct {
	dispatcher *Dispatcher
	notifiers  []Notifier
	logger     *slog.Logger
}

// NewAnnouncer creates an announcer over the given notifiers
func NewAnnouncer(d *Dispatcher, logger *slog.Logger, notifiers ...Notifier) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{dispatcher: d, notifiers: notifiers, logger: logger}
}

// Announce queues the win for every notifier. It never blocks.
func (a *Announcer) Announce(w Win) {
	for _, n := range a.notifiers {
		n := n
		if !a.dispatcher.Submit(Task{
			Name: n.Name(),
			Run:  func(ctx context.Context) error { return n.Notify(ctx, w) },
		}) {
			a.logger.Warn("win notification dropped", "notifier", n.Name(), "round_id", w.RoundID)
		}
	}
}
