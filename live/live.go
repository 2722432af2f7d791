// Package live serves a running engine over a websocket: every client gets
// the live cell state and a stream of subsequent changes, push-only, with no
// server-side rendering or layout computation (that stays a client concern).
package live

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ssc/display"
	"ssc/engine"
	"ssc/persist"
	"ssc/sheet"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CellMessage is one cell's current state, pushed either individually after
// an edit or in bulk after a reset.
type CellMessage struct {
	Type    string  `json:"type"` // "cell" or "reset"
	Row     int     `json:"row,omitempty"`
	Col     int     `json:"col,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Label   string  `json:"label,omitempty"`
	Error   int     `json:"error,omitempty"`
	Display string  `json:"display,omitempty"`
}

// UpdateRequest is a client-submitted command line, same vocabulary as
// package persist (e.g. `let A1 = 2+3`).
type UpdateRequest struct {
	Line string `json:"line"`
}

// Hub owns the engine, the abbreviation table used to expand incoming
// command lines, and the set of connected clients.
type Hub struct {
	Engine *engine.Engine
	Abbrev *persist.AbbrevTable

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub wraps an already-constructed engine for serving.
func NewHub(eng *engine.Engine) *Hub {
	return &Hub{
		Engine:  eng,
		Abbrev:  persist.NewAbbrevTable(),
		clients: make(map[*websocket.Conn]bool),
	}
}

// HandleWebSocket upgrades the connection, sends the current sheet as a
// reset burst, then services incoming command lines until the client
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("live: upgrade error:", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	h.sendReset(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req UpdateRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Println("live: malformed request:", err)
			continue
		}
		if err := persist.Apply(h.Engine, h.Abbrev, req.Line); err != nil {
			log.Printf("live: apply %q failed: %v", req.Line, err)
			continue
		}
		h.broadcastChanged()
	}
}

// sendReset streams the whole live sheet to one client, oldest row first.
func (h *Hub) sendReset(conn *websocket.Conn) {
	if err := conn.WriteJSON(CellMessage{Type: "reset"}); err != nil {
		return
	}
	sh := h.Engine.Sheet
	for row := 0; row <= sh.MaxRow; row++ {
		for col := 0; col <= sh.MaxCol; col++ {
			cell := sh.Get(row, col)
			if cell == nil || !cell.Live() {
				continue
			}
			if err := conn.WriteJSON(cellMessage(sh, row, col, cell)); err != nil {
				return
			}
		}
	}
}

// broadcastChanged pushes every cell flagged changed by the last
// recalculation to every connected client, then clears the flag.
func (h *Hub) broadcastChanged() {
	sh := h.Engine.Sheet
	var msgs []CellMessage
	for row := 0; row <= sh.MaxRow; row++ {
		for col := 0; col <= sh.MaxCol; col++ {
			cell := sh.Get(row, col)
			if cell == nil || !cell.Has(sheet.FlagChanged) {
				continue
			}
			cell.Clear(sheet.FlagChanged)
			msgs = append(msgs, cellMessage(sh, row, col, cell))
		}
	}
	if len(msgs) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range msgs {
		for client := range h.clients {
			if err := client.WriteJSON(msg); err != nil {
				log.Printf("live: broadcast failed: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
	}
}

func cellMessage(sh *sheet.Sheet, row, col int, cell *sheet.Cell) CellMessage {
	label := ""
	if cell.Label != nil {
		label = cell.Label.String()
	}
	disp := ""
	if cell.Tag == sheet.Number {
		disp = display.FormatNumber(cell.Value, sh.ColFormat(col))
	}
	return CellMessage{
		Type:    "cell",
		Row:     row,
		Col:     col,
		Value:   cell.Value,
		Label:   label,
		Error:   int(cell.Error),
		Display: disp,
	}
}

// RegisterRoutes mounts the websocket endpoint on mux.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}
