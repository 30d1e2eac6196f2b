package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"LedgerCast/internal/domain/models"
	domrepo "LedgerCast/internal/domain/repository"
	applogger "LedgerCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// sendBuffer per client; a client that cannot keep up is dropped
	// rather than blocking the broadcast.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn  *websocket.Conn
	orgID string
	send  chan []byte
}

// AlertsHub broadcasts anomaly alerts to connected websocket clients.
// Clients subscribe per organization; the hub doubles as an AlertPublisher
// sink so flagged anomalies reach dashboards without a Kafka round trip.
type AlertsHub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *applogger.Logger
}

func NewAlertsHub(logger *applogger.Logger) *AlertsHub {
	return &AlertsHub{clients: make(map[*client]struct{}), logger: logger}
}

var _ domrepo.AlertPublisher = (*AlertsHub)(nil)

func (h *AlertsHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/alerts", h.Serve)
}

// Serve upgrades the connection and streams alerts for the requested
// organization until the client disconnects.
func (h *AlertsHub) Serve(c echo.Context) error {
	orgID := c.QueryParam("org_id")
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org_id required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, orgID: orgID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("alerts client connected", applogger.String("org_id", orgID))
	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Publish broadcasts one alert to every client subscribed to its org.
func (h *AlertsHub) Publish(_ context.Context, a models.AnomalyResult) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.orgID != a.OrgID {
			continue
		}
		select {
		case cl.send <- payload:
		default:
			// slow client; writeLoop will clean up on close
			h.logger.Warn("alerts client lagging, dropping message", applogger.String("org_id", cl.orgID))
		}
	}
	return nil
}

func (h *AlertsHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		close(cl.send)
		delete(h.clients, cl)
	}
	return nil
}

func (h *AlertsHub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains control frames and detects disconnects.
func (h *AlertsHub) readLoop(cl *client) {
	defer h.remove(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertsHub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	cl.conn.Close()
	h.logger.Info("alerts client disconnected", applogger.String("org_id", cl.orgID))
}
