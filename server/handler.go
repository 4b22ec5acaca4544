package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades to a live editing connection. The client picks a work
// with a join message.
func (s *Server) serveWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return nil
	}
	client := newClient(s.hub, conn)
	s.log.Debug("editor connected", zap.String("client", client.ID), zap.String("remote_ip", c.RealIP()))
	go client.WritePump()
	go client.ReadPump()
	return nil
}
