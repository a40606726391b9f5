package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/mcoot/kidfeed/internal/model"
	"github.com/mcoot/kidfeed/internal/storage"
	"github.com/mcoot/kidfeed/internal/storage/notify"
)

const pgChannel = "kidfeed_events"

// pgNotifier carries change events over PostgreSQL LISTEN/NOTIFY so every server
// sharing the database sees them. Received events fan out through a local notifier.
type pgNotifier struct {
	db       *sql.DB
	dsn      string
	local    *notify.Notifier
	mu       sync.Mutex
	listener *pq.Listener
}

var _ storage.Notifier = (*pgNotifier)(nil)

func newPGNotifier(db *sql.DB, dsn string) *pgNotifier {
	return &pgNotifier{db: db, dsn: dsn, local: notify.New()}
}

func (n *pgNotifier) Publish(ctx context.Context, event model.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pgChannel, string(data))
	return err
}

func (n *pgNotifier) Subscribe(fn func(model.ChangeEvent)) func() {
	n.ensureListener()
	return n.local.Subscribe(fn)
}

// ensureListener starts the shared LISTEN connection on first subscription
func (n *pgNotifier) ensureListener() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener != nil {
		return
	}

	n.listener = pq.NewListener(n.dsn, 10*time.Second, time.Minute, nil)
	_ = n.listener.Listen(pgChannel)

	go func(l *pq.Listener) {
		for notification := range l.Notify {
			// nil after a reconnect
			if notification == nil {
				continue
			}
			var event model.ChangeEvent
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				continue
			}
			_ = n.local.Publish(context.Background(), event)
		}
	}(n.listener)
}

func (n *pgNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	err := n.listener.Close()
	n.listener = nil
	return err
}
