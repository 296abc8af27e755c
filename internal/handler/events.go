package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cart-keeper/internal/domain/cart"
)

// Events streams the current cart and every committed cart as server-sent
// events named "cart". A slow client skips intermediate states.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())
	rc := http.NewResponseController(w)

	// The server write timeout would otherwise cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		lg.Debug("Cannot clear write deadline", zap.Error(err))
	}

	ch, cancel := h.cart.Subscribe()
	defer cancel()

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			frame = cartEvent(c)
		case <-ticker.C:
			frame = []byte(": keep-alive\n\n")
		}
		if _, err := w.Write(frame); err != nil {
			lg.Debug("Event stream closed", zap.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			lg.Warn("Event stream flush failed", zap.Error(err))
			return
		}
	}
}

func cartEvent(c cart.Cart) []byte {
	data := cart.Marshal(c)
	frame := make([]byte, 0, len(data)+24)
	frame = append(frame, "event: cart\ndata: "...)
	frame = append(frame, data...)
	return append(frame, "\n\n"...)
}
