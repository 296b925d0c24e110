package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/timetable"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// LiveMessage is pushed to live clients: once on connect, then after every change in the school.
// Editors also receive a fresh conflict report.
type LiveMessage struct {
	Event     *timetable.ChangeEvent `json:"event,omitempty"`
	Conflicts *timetable.Report      `json:"conflicts,omitempty"`
}

func (api *timetableApi) live(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	schoolID := ctx.Param(schoolParam)

	// subscribe before upgrading so that no change is missed in between
	events, cancel := api.subscriber.Subscribe(schoolID)
	defer cancel()

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		api.logger.Warn("live: upgrading connection", err, claims.Identity())
		return nil
	}
	defer func() { _ = conn.Close() }()

	reqCtx, stop := context.WithCancel(ctx.Request().Context())
	defer stop()

	// the client only sends control frames; reading until it leaves handles them
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	go func() {
		defer stop()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(evt *timetable.ChangeEvent) error {
		msg := LiveMessage{Event: evt}
		if claims.CanEditTimetable {
			report, _, err := api.engine.SchoolConflicts(reqCtx, schoolID)
			if err != nil {
				return errors.Wrap(err, "detecting conflicts")
			}
			msg.Conflicts = &report
		}
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return errors.Wrap(conn.WriteJSON(msg), "writing message")
	}

	if err = send(nil); err != nil {
		api.logger.Error(fmt.Sprintf("live: school %q", schoolID), err, claims.Identity())
		return nil
	}

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case evt, ok := <-events:
			if !ok { // hub closed
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(liveWriteWait),
				)
				return nil
			}
			if err = send(&evt); err != nil {
				if reqCtx.Err() == nil {
					api.logger.Error(fmt.Sprintf("live: school %q", schoolID), err, claims.Identity())
				}
				return nil
			}
		case <-ping.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return nil
			}
		}
	}
}
