package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/denpacast/broadcast/internal/broadcast"
)

// statusHandlers holds the gin route handlers for liveness and aggregate
// status.
type statusHandlers struct {
	coord *broadcast.Coordinator
}

func newStatusHandlers(coord *broadcast.Coordinator) *statusHandlers {
	return &statusHandlers{coord: coord}
}

// Health handles GET /health.
func (h *statusHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /api/status: a snapshot of every profile's connection
// state plus the most recent connect/disconnect events, so a client can
// render current state without waiting on the SSE stream's first message.
func (h *statusHandlers) Status(c *gin.Context) {
	profiles := h.coord.Profiles()
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, toProfileView(p, h.coord.Status(p.Name)))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"profiles":      views,
		"recent_events": h.coord.RecentEvents(),
	})
}
