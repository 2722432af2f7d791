// Package bus exposes a running engine over ZeroMQ: a PUB socket broadcasts
// one message per cell a recalculation pass changed (the networked analogue
// of the teacher's Jupyter kernel's IOPub channel), and a REP socket accepts
// persistence-vocabulary command lines and replies ok/error (the analogue of
// the kernel's shell channel, now carrying spreadsheet edits instead of code
// execution requests).
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/sync/singleflight"

	"ssc/display"
	"ssc/engine"
	"ssc/persist"
	"ssc/sheet"
)

// CellChanged is one broadcast unit: a single cell's post-recalculation
// state.
type CellChanged struct {
	Row, Col int
	Value    float64
	Label    string
	Error    int
	Display  string
}

// Publisher owns the PUB socket and is driven by the caller after every
// recalculation: Broadcast walks the changed cells and emits one message
// each, then a trailing "done" marker so subscribers know a batch ended.
type Publisher struct {
	sock zmq4.Socket
	mu   sync.Mutex
}

// NewPublisher binds a PUB socket at addr (e.g. "tcp://127.0.0.1:5556").
func NewPublisher(ctx context.Context, addr string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("bus: publisher listen %s: %w", addr, err)
	}
	return &Publisher{sock: sock}, nil
}

// Broadcast emits one message per changed cell, under a final "done" frame.
func (p *Publisher) Broadcast(changed []CellChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range changed {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := p.sock.Send(zmq4.NewMsg(b)); err != nil {
			log.Printf("bus: publish cell (%d,%d) failed: %v", c.Row, c.Col, err)
			return err
		}
	}
	return p.sock.Send(zmq4.NewMsg([]byte(`{"done":true}`)))
}

// Close releases the PUB socket.
func (p *Publisher) Close() error { return p.sock.Close() }

// CommandRequest is the REP channel's request envelope: one persistence
// command line, same vocabulary as package persist.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandReply is the REP channel's response envelope.
type CommandReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CommandServer owns the REP socket, applying incoming command lines to an
// engine.Engine via package persist. A singleflight group collapses
// duplicate in-flight requests (the same line retried by a flaky network
// peer while the first attempt is still being applied) onto one actual
// engine mutation, consistent with the single-control-thread guarantee that
// at most one edit touches sheet state at a time.
type CommandServer struct {
	sock    zmq4.Socket
	engine  *engine.Engine
	abbrev  *persist.AbbrevTable
	group   singleflight.Group
	onApply func([]CellChanged)
}

// NewCommandServer binds a REP socket at addr and will apply accepted
// commands to eng. onApply, if non-nil, is called with the changed cells
// after every successful command that triggers a recalculation, letting the
// caller wire a Publisher's Broadcast to it.
func NewCommandServer(ctx context.Context, addr string, eng *engine.Engine, abbrev *persist.AbbrevTable, onApply func([]CellChanged)) (*CommandServer, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("bus: command server listen %s: %w", addr, err)
	}
	return &CommandServer{sock: sock, engine: eng, abbrev: abbrev, onApply: onApply}, nil
}

// Serve runs the request/reply loop until the socket is closed.
func (s *CommandServer) Serve() {
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			return
		}
		reply := s.handle(msg.Frames)
		b, _ := json.Marshal(reply)
		if err := s.sock.Send(zmq4.NewMsg(b)); err != nil {
			log.Printf("bus: command reply failed: %v", err)
		}
	}
}

func (s *CommandServer) handle(frames [][]byte) CommandReply {
	if len(frames) == 0 {
		return CommandReply{OK: false, Error: "bus: empty request"}
	}
	var req CommandRequest
	if err := json.Unmarshal(frames[0], &req); err != nil {
		return CommandReply{OK: false, Error: err.Error()}
	}

	_, err, _ := s.group.Do(req.Line, func() (interface{}, error) {
		return nil, persist.Apply(s.engine, s.abbrev, req.Line)
	})
	if err != nil {
		return CommandReply{OK: false, Error: err.Error()}
	}
	if s.onApply != nil {
		s.onApply(s.snapshotChanged())
	}
	return CommandReply{OK: true}
}

// snapshotChanged walks the sheet for cells flagged changed by the most
// recent recalculation and clears the flag, matching the reference
// implementation's per-pass changed-cell bookkeeping.
func (s *CommandServer) snapshotChanged() []CellChanged {
	var out []CellChanged
	sh := s.engine.Sheet
	for row := 0; row <= sh.MaxRow; row++ {
		for col := 0; col <= sh.MaxCol; col++ {
			cell := sh.Get(row, col)
			if cell == nil || !cell.Has(sheet.FlagChanged) {
				continue
			}
			cell.Clear(sheet.FlagChanged)
			label := ""
			if cell.Label != nil {
				label = cell.Label.String()
			}
			disp := ""
			if cell.Tag == sheet.Number {
				disp = display.FormatNumber(cell.Value, sh.ColFormat(col))
			}
			out = append(out, CellChanged{Row: row, Col: col, Value: cell.Value, Label: label, Error: int(cell.Error), Display: disp})
		}
	}
	return out
}

// Close releases the REP socket.
func (s *CommandServer) Close() error { return s.sock.Close() }
