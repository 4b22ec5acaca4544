package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/draft"
)

const saveTimeout = 10 * time.Second

type contentMessage struct {
	client *Client
	msg    ClientMessage
}

// Session manages live editing of a single work. All edits are
// serialized through a single goroutine. An edit replaces the whole
// document and is accepted only when made from the current revision.
type Session struct {
	workID   string
	content  string
	revision int
	hub      *Hub
	log      *zap.Logger
	clients  map[*Client]bool

	incoming chan contentMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(hub *Hub, workID, content string) *Session {
	return &Session{
		workID:   workID,
		content:  content,
		hub:      hub,
		log:      hub.log.With(zap.String("work", workID)),
		clients:  make(map[*Client]bool),
		incoming: make(chan contentMessage, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		stop:     make(chan struct{}),
	}
}

// Run is the session's main loop. It returns when the last client has
// left or the hub closes.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			if s.handleJoin(c) {
				return
			}
		case c := <-s.leave:
			if s.handleLeave(c) {
				return
			}
		case cm := <-s.incoming:
			s.handleContent(cm)
		case <-s.stop:
			return
		}
	}
}

// handleJoin adds c and reports whether the session has ended, which
// happens when c disconnected before it could be added and no one else
// is editing.
func (s *Session) handleJoin(c *Client) bool {
	if !c.attach(s) {
		s.log.Debug("dropped join", zap.String("client", c.ID))
		if c.currentSession() != nil {
			c.sendError("already joined")
		}
		return len(s.clients) == 0 && s.hub.release(s)
	}
	s.clients[c] = true

	// Send the current document and its preview to the joining client.
	c.sendMsg(ServerMessage{
		Type:     MsgDoc,
		WorkID:   s.workID,
		Content:  s.content,
		Revision: s.revision,
		HTML:     s.preview(s.content),
		Clients:  s.clientInfos(),
	})

	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:     MsgJoin,
				ClientID: c.ID,
				Name:     c.Name,
				Color:    c.Color,
			})
		}
	}
	return false
}

// handleLeave removes c and reports whether the session has ended.
func (s *Session) handleLeave(c *Client) bool {
	if _, ok := s.clients[c]; !ok {
		return false
	}
	delete(s.clients, c)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)

	for other := range s.clients {
		other.sendMsg(ServerMessage{
			Type:     MsgLeave,
			ClientID: c.ID,
		})
	}
	return len(s.clients) == 0 && s.hub.release(s)
}

func (s *Session) handleContent(cm contentMessage) {
	if cm.msg.Revision != s.revision {
		// The sender edited an old version; resend the current one.
		cm.client.sendMsg(ServerMessage{Type: MsgError, Revision: s.revision, Message: "stale revision"})
		cm.client.sendMsg(ServerMessage{
			Type:     MsgDoc,
			WorkID:   s.workID,
			Content:  s.content,
			Revision: s.revision,
			HTML:     s.preview(s.content),
		})
		return
	}

	doc, err := draft.Parse(cm.msg.Content)
	if err != nil {
		cm.client.sendError("invalid document")
		return
	}
	content := draft.Serialize(doc)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	err = s.hub.works.UpdateContent(ctx, s.workID, content)
	cancel()
	if err != nil {
		s.log.Error("save content", zap.Error(err))
		cm.client.sendError("save failed")
		return
	}

	s.content = content
	s.revision++

	cm.client.sendMsg(ServerMessage{Type: MsgAck, Revision: s.revision})

	html := s.preview(content)
	for c := range s.clients {
		if c != cm.client {
			c.sendMsg(ServerMessage{
				Type:     MsgContent,
				WorkID:   s.workID,
				Content:  content,
				Revision: s.revision,
				ClientID: cm.client.ID,
			})
		}
		c.sendMsg(ServerMessage{Type: MsgPreview, WorkID: s.workID, Revision: s.revision, HTML: html})
	}
}

func (s *Session) preview(content string) string {
	html := draft.RenderSafe(content)
	s.hub.metrics.rendered(content, html)
	return html
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
