package httpapi

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/denpacast/broadcast/internal/broadcast"
)

// eventHandlers holds the gin route handler for the connect/disconnect
// event stream. Built on gin-contrib/sse's Event/Encode primitives
// directly (rather than gin.Context.SSEvent's thinner wrapper) so a
// numeric event ID can be set for client reconnect/Last-Event-ID use.
type eventHandlers struct {
	coord *broadcast.Coordinator
}

func newEventHandlers(coord *broadcast.Coordinator) *eventHandlers {
	return &eventHandlers{coord: coord}
}

// Stream handles GET /api/events. It first replays recent history, then
// blocks, writing one SSE frame per new connect/disconnect transition until
// the client disconnects.
func (h *eventHandlers) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	seq := 0
	writeEvent := func(ev broadcast.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		seq++
		_ = sse.Encode(c.Writer, sse.Event{
			Id:    strconv.Itoa(seq),
			Event: "broadcast-status",
			Data:  string(data),
		})
		c.Writer.Flush()
	}

	for _, ev := range h.coord.RecentEvents() {
		writeEvent(ev)
	}

	received := make(chan broadcast.Event, 64)
	h.coord.OnEvent(func(ev broadcast.Event) {
		select {
		case received <- ev:
		default:
		}
	})

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-received:
			writeEvent(ev)
		case <-ticker.C:
			_ = sse.Encode(c.Writer, sse.Event{Event: "keepalive", Data: ""})
			c.Writer.Flush()
		}
	}
}

