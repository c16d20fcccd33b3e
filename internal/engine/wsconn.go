package engine

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultNodeEndpoint is where the engine coordinator accepts dynamic-node
// attachments.
const DefaultNodeEndpoint = "ws://127.0.0.1:53290"

const (
	wsHandshakeTimeout = 5 * time.Second
	wsFrameBuffer      = 16
)

// wire frame exchanged with the coordinator. Inbound frames carry type
// "input" or "stop"; outbound frames carry type "output".
type wsFrame struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	NodeID   string            `json:"node_id,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WSConn is the websocket implementation of NodeConn.
//
// A dedicated reader goroutine pumps frames into a buffered channel so the
// short Recv poll timeout never touches the socket: gorilla read errors are
// permanent, so an expired read deadline would poison the connection. Recv
// and Send are used from the one worker goroutine that owns the bridge;
// Close may be called from another goroutine during teardown, which is the
// one pair gorilla/websocket permits.
type WSConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	frames   chan wsFrame
	readDone chan struct{}
	readErr  error // written by the reader before readDone closes

	closeOnce sync.Once
	closeCh   chan struct{}
}

// DialNode attaches to the coordinator at endpoint as the dynamic node
// nodeID. An empty endpoint uses DefaultNodeEndpoint.
func DialNode(endpoint, nodeID string) (*WSConn, error) {
	if endpoint == "" {
		endpoint = DefaultNodeEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("node endpoint: %w", err)
	}
	u.Path = "/nodes/" + nodeID

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("attach node %s: %w", nodeID, err)
	}

	ws := &WSConn{
		conn:     conn,
		frames:   make(chan wsFrame, wsFrameBuffer),
		readDone: make(chan struct{}),
		closeCh:  make(chan struct{}),
	}
	// Announce which node this connection serves before any traffic flows.
	if err := ws.writeFrame(wsFrame{Type: "register", NodeID: nodeID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("register node %s: %w", nodeID, err)
	}
	go ws.readLoop()
	return ws, nil
}

// Dialer returns a DialFunc bound to endpoint.
func Dialer(endpoint string) DialFunc {
	return func(nodeID string) (NodeConn, error) {
		return DialNode(endpoint, nodeID)
	}
}

// readLoop pumps inbound frames until the connection dies or Close is
// called. The terminal read error is published through readDone so Recv can
// report it.
func (w *WSConn) readLoop() {
	defer close(w.readDone)
	for {
		var frame wsFrame
		if err := w.conn.ReadJSON(&frame); err != nil {
			w.readErr = err
			return
		}
		switch frame.Type {
		case "input", "stop":
		default:
			// Unknown frame types are tolerated so coordinator upgrades do
			// not break older bridges.
			continue
		}
		select {
		case w.frames <- frame:
		case <-w.closeCh:
			return
		}
	}
}

// Recv implements NodeConn. Buffered frames are delivered even after the
// reader has hit its terminal error.
func (w *WSConn) Recv(timeout time.Duration) (Event, bool, error) {
	select {
	case frame := <-w.frames:
		return eventForFrame(frame), true, nil
	default:
	}
	select {
	case frame := <-w.frames:
		return eventForFrame(frame), true, nil
	case <-w.readDone:
		err := w.readErr
		if err == nil {
			err = net.ErrClosed
		}
		return Event{}, false, err
	case <-time.After(timeout):
		return Event{}, false, nil
	}
}

func eventForFrame(frame wsFrame) Event {
	if frame.Type == "stop" {
		return Event{Stop: true}
	}
	return Event{ID: frame.ID, Data: frame.Data, Metadata: frame.Metadata}
}

// Send implements NodeConn.
func (w *WSConn) Send(outputID string, metadata map[string]string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode output %s: %w", outputID, err)
	}
	return w.writeFrame(wsFrame{Type: "output", ID: outputID, Data: raw, Metadata: metadata})
}

func (w *WSConn) writeFrame(frame wsFrame) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(frame)
}

// Close implements NodeConn.
func (w *WSConn) Close() error {
	w.closeOnce.Do(func() { close(w.closeCh) })
	return w.conn.Close()
}
