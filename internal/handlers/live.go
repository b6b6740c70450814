package handlers

import (
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	liveWebsiteLocal = "live_website_id"
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 10 * time.Second
	liveBuffer       = 64
)

// LiveUpgrade checks ownership and the upgrade header before LiveFeed takes
// over the connection.
func (d *Dashboard) LiveUpgrade(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(liveWebsiteLocal, website.ID.String())
	return c.Next()
}

// LiveFeed streams realtime payloads for the website resolved by LiveUpgrade.
func (d *Dashboard) LiveFeed() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		websiteID, err := uuid.Parse(toString(conn.Locals(liveWebsiteLocal)))
		if err != nil {
			_ = conn.Close()
			return
		}

		sub := d.hub.Subscribe(websiteID, liveBuffer)
		d.metrics.LiveClientConnected()
		defer func() {
			sub.Close()
			d.metrics.LiveClientDisconnected()
			_ = conn.Close()
		}()

		// The reader only notices the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(livePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-done:
				return
			case p, open := <-sub.C:
				if !open {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
				if err := conn.WriteJSON(p); err != nil {
					d.log.Debug("live feed write failed", zap.Stringer("website_id", websiteID), zap.Error(err))
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	})
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}
