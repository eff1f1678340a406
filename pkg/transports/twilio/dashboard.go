package twilio

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/tavolo/pkg/metrics"
)

// Dashboard broadcasts engine metrics events to websocket subscribers.
// It implements metrics.Observer; events are dropped when no subscriber
// keeps up, never blocking the call path.
type Dashboard struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

func NewDashboard(checkOrigin func(*http.Request) bool) *Dashboard {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Dashboard{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

type dashboardEvent struct {
	Name   string            `json:"name"`
	Time   string            `json:"time"`
	Value  float64           `json:"value,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

func (d *Dashboard) RecordEvent(ev metrics.MetricsEvent) {
	payload, err := json.Marshal(dashboardEvent{
		Name:   ev.Name,
		Time:   ev.Time.Format(time.RFC3339Nano),
		Value:  ev.Value,
		Tags:   ev.Tags,
		Fields: ev.Fields,
	})
	if err != nil {
		return
	}
	d.mu.Lock()
	for _, ch := range d.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	d.mu.Unlock()
}

func (d *Dashboard) ServeWS(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	d.mu.Unlock()

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := make(chan []byte, 64)
	d.mu.Lock()
	d.clients[conn] = ch
	d.mu.Unlock()

	go func() {
		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		_ = conn.Close()
	}()

	// Reads are discarded; the feed is one-way. Exit detaches the client.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	d.detach(conn)
}

func (d *Dashboard) detach(conn *websocket.Conn) {
	d.mu.Lock()
	ch, ok := d.clients[conn]
	if ok {
		delete(d.clients, conn)
	}
	d.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	conns := make([]*websocket.Conn, 0, len(d.clients))
	for conn := range d.clients {
		conns = append(conns, conn)
	}
	d.mu.Unlock()
	for _, conn := range conns {
		d.detach(conn)
	}
	slog.Debug("dashboard_closed")
}

var _ metrics.Observer = (*Dashboard)(nil)

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Tavolo Call Dashboard</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
h1 { color: #6cf; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #333; padding: 4px 8px; text-align: left; }
tr.escalation td { color: #f66; }
</style>
</head>
<body>
<h1>Tavolo Call Dashboard</h1>
<p id="status">connecting...</p>
<table>
<thead><tr><th>time</th><th>event</th><th>call</th><th>detail</th></tr></thead>
<tbody id="events"></tbody>
</table>
<script>
const proto = location.protocol === "https:" ? "wss" : "ws";
const ws = new WebSocket(proto + "://" + location.host + "/dashboard/ws");
const status = document.getElementById("status");
const tbody = document.getElementById("events");
ws.onopen = () => { status.textContent = "live"; };
ws.onclose = () => { status.textContent = "disconnected"; };
ws.onmessage = (msg) => {
  const ev = JSON.parse(msg.data);
  const row = document.createElement("tr");
  if (ev.name === "escalation") row.className = "escalation";
  const call = (ev.tags && ev.tags.call_sid) || "";
  const detail = JSON.stringify(ev.fields || ev.tags || {});
  row.innerHTML = "<td>" + ev.time + "</td><td>" + ev.name + "</td><td>" + call + "</td><td>" + detail + "</td>";
  tbody.prepend(row);
  while (tbody.rows.length > 100) tbody.deleteRow(-1);
};
</script>
</body>
</html>
`
