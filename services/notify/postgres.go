package notifysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

// Channel is the Postgres NOTIFY channel carrying change events.
const Channel = "ratiba_changes"

// PGNotifier publishes change events with pg_notify so that every API instance sees them.
type PGNotifier struct {
	db core.DBExecutor
}

var _ timetable.ChangeNotifier = (*PGNotifier)(nil)

func NewPGNotifier(db core.DBExecutor) *PGNotifier {
	return &PGNotifier{db: db}
}

func (n *PGNotifier) Notify(ctx context.Context, evt timetable.ChangeEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding change event")
	}
	_, err = n.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", Channel, string(payload))
	return errors.Wrap(err, "notifying change")
}

// CatalogRefresher drops the cached catalog of a school.
type CatalogRefresher interface {
	Refresh(ctx context.Context, schoolID string) error
}

// Listener forwards the change events received on Channel to a Hub.
// Catalog events also refresh the local catalog cache when catalogs is set.
type Listener struct {
	listener *pq.Listener
	hub      *Hub
	catalogs CatalogRefresher // optional
	logger   core.Logger
}

func NewListener(conninfo string, hub *Hub, catalogs CatalogRefresher, logger core.Logger) *Listener {
	l := &Listener{hub: hub, catalogs: catalogs, logger: logger}
	l.listener = pq.NewListener(conninfo, 10*time.Second, time.Minute, l.onEvent)
	return l
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		l.logger.Error(fmt.Sprintf("pq listener event %d", ev), err)
	}
}

// Run listens until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.listener.Listen(Channel); err != nil {
		return errors.Wrap(err, "listening to changes")
	}
	defer func() { _ = l.listener.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.listener.Notify:
			if n == nil { // reconnected, events may have been lost
				continue
			}
			l.forward(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go func() { _ = l.listener.Ping() }()
		}
	}
}

func (l *Listener) forward(ctx context.Context, payload string) {
	var evt timetable.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		l.logger.Warn("decoding change event", err)
		return
	}
	if evt.Kind == timetable.ChangeCatalog && l.catalogs != nil {
		if err := l.catalogs.Refresh(ctx, evt.SchoolID); err != nil {
			l.logger.Warn(fmt.Sprintf("refreshing catalog of school %q", evt.SchoolID), err)
		}
	}
	_ = l.hub.Notify(ctx, evt)
}
