package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

// Notifier broadcasts classification outcomes over Postgres LISTEN/NOTIFY so
// the clinic's queue display can react without polling the kiosk.
type Notifier struct {
	DB      *sql.DB
	ConnStr string
	Channel string
}

// NewNotifier constructs a Notifier. connStr is reused by Listen, which needs
// its own connection; channel should match the queue display's subscription.
func NewNotifier(db *sql.DB, connStr, channel string) *Notifier {
	return &Notifier{DB: db, ConnStr: connStr, Channel: channel}
}

// Classification is the payload carried on the notification channel.
type Classification struct {
	VisitID    string `json:"visit_id"`
	PersonID   int64  `json:"person_id"`
	RiskLevel  int    `json:"risk_level"`
	Color      string `json:"color"`
	NotifiedAt string `json:"notified_at"`
}

// Notify publishes a classification to the channel.
func (n *Notifier) Notify(ctx context.Context, c Classification) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, string(payload))
	return err
}

// Listen yields classifications as they are published. The returned channel
// closes when ctx is cancelled. Intended for the queue display process, not
// the kiosk itself.
func (n *Notifier) Listen(ctx context.Context) (<-chan Classification, error) {
	listener := pq.NewListener(n.ConnStr, 10*time.Second, time.Minute, func(_ pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("notify listener: %v", err)
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		listener.Close()
		return nil, err
	}
	ch := make(chan Classification)
	go func() {
		defer func() {
			listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-listener.Notify:
				if !ok {
					return
				}
				if note == nil {
					// reconnect ping from the driver
					continue
				}
				var c Classification
				if err := json.Unmarshal([]byte(note.Extra), &c); err != nil {
					log.Printf("notify payload: %v", err)
					continue
				}
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
