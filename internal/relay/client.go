package relay

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ET2780/buti-buzz-hub/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type Client struct {
	conn  *websocket.Conn
	relay *RelayServer
	log   *log.Logger
	user  types.PresenceEntry
	send  chan *ServerEvent
	stop  chan struct{}
	// stopOnce guards stop: both the run loop (on reconnect replacement)
	// and cleanup may stop the client.
	stopOnce sync.Once
}

func NewClient(user types.PresenceEntry, conn *websocket.Conn, rs *RelayServer, l *log.Logger) *Client {
	return &Client{
		conn:  conn,
		relay: rs,
		log:   l,
		user:  user,
		send:  make(chan *ServerEvent, 256),
		stop:  make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(event)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read pumps inbound events into the relay. Its deferred cleanup is the
// cancellation boundary for the connection: it always deregisters the
// client, on abnormal close paths included, so no stale roster entry
// survives a connection loss.
func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Println("error parsing event:", err)
			continue
		}

		switch event.Type {
		case EventMessage:
			if event.Message == nil || event.Message.Text == "" {
				continue
			}

			select {
			case c.relay.publishChan <- &publishReq{client: c, publish: event.Message}:
			default:
				c.log.Println("publish channel full, dropping message")
			}
		default:
			c.log.Printf("ignoring unknown client event %q", event.Type)
		}
	}
}

func (c *Client) queueEvent(event *ServerEvent) bool {
	select {
	case c.send <- event:
	default:
		c.log.Println("failed to queue event, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	select {
	case c.relay.deRegisterChan <- c:
	case <-c.relay.done:
		// run loop already exited, nothing to deregister from
	}
	c.stopClient()
}
