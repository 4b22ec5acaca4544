package server

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Documents travel whole and may embed data URL images.
	maxMsgSize = 8 << 20
)

// Client represents a single editor connection.
type Client struct {
	ID    string
	Name  string
	Color string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	// The session this client is currently in (nil if not joined).
	mu      sync.Mutex
	session *Session
	// gone is set once the read side has stopped; no session may take the
	// client after that.
	gone bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	u := ulid.Make()
	id := strings.ToLower(u.String())
	// The head of a ulid is a timestamp; name clients by the random tail.
	color := draft.PresetColors[int(u.Entropy()[0])%len(draft.PresetColors)]
	return &Client{
		ID:    id,
		Name:  "편집자 " + id[len(id)-6:],
		Color: color,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, 256),
		log:   hub.log.With(zap.String("client", id)),
	}
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// attach records s as the client's session. It fails once the client has
// disconnected or when it already belongs to a session.
func (c *Client) attach(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone || c.session != nil {
		return false
	}
	c.session = s
	return true
}

// detach marks the client gone and returns the session it must leave.
func (c *Client) detach() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gone = true
	return c.session
}

// ReadPump reads messages from the WebSocket and routes them.
func (c *Client) ReadPump() {
	defer func() {
		if s := c.detach(); s != nil {
			select {
			case s.leave <- c:
			case <-s.stop:
			}
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case MsgJoin:
			if c.currentSession() != nil {
				c.sendError("already joined")
				continue
			}
			if msg.WorkID == "" {
				c.sendError("workId required")
				continue
			}
			select {
			case c.hub.joinWork <- joinRequest{client: c, workID: msg.WorkID}:
			case <-c.hub.done:
				return
			}
		case MsgContent:
			s := c.currentSession()
			if s == nil {
				c.sendError("not joined to a work")
				continue
			}
			select {
			case s.incoming <- contentMessage{client: c, msg: msg}:
			case <-s.stop:
				return
			}
		case MsgLeave:
			return
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMsg(msg ServerMessage) {
	select {
	case c.send <- msg.Encode():
	default:
		// Client too slow, drop message.
	}
}

func (c *Client) sendError(message string) {
	c.sendMsg(ServerMessage{Type: MsgError, Message: message})
}

func (c *Client) Info() ClientInfo {
	return ClientInfo{ID: c.ID, Name: c.Name, Color: c.Color}
}
