package controller

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"outreach/config"
	"outreach/utils"
)

// StatsUpgrade rejects plain HTTP requests on the stats stream route
func (cc *CampaignController) StatsUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := utils.ParseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := cc.Campaigns.Get(c.UserContext(), id); err != nil {
		return err
	}
	c.Locals("campaignID", id)
	return c.Next()
}

type statsFrame struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// StreamStats pushes the campaign stats on every tick until the campaign
// completes or the client goes away
func (cc *CampaignController) StreamStats(c *websocket.Conn) {
	defer c.Close()

	id, _ := c.Locals("campaignID").(uint)
	log := cc.Logger.WithField("campaign_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// reader: only used to notice the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := config.AppConfig.StatsPushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := cc.Campaigns.Stats(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Stats stream stopped")
			_ = c.WriteJSON(statsFrame{Type: "error", Message: "Campaign statistics unavailable"})
			return
		}
		if err := c.WriteJSON(statsFrame{Type: "stats", Data: stats}); err != nil {
			log.WithError(err).Debug("Stats client gone")
			return
		}
		if stats.CompletedAt != nil {
			_ = c.WriteJSON(statsFrame{Type: "completed"})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
