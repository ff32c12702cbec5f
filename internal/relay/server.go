package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/ET2780/buti-buzz-hub/internal/config"
	"github.com/ET2780/buti-buzz-hub/internal/stats"
	"github.com/ET2780/buti-buzz-hub/internal/types"
)

// ErrHandshakeRejected is returned to connections that present no identity.
var ErrHandshakeRejected = errors.New("handshake requires user_id and user_name")

type publishReq struct {
	client  *Client
	publish *Publish
}

type stopReq struct {
	done chan struct{}
}

// RelayServer is the minimal in-memory fan-out transport: it holds the full
// message history and the user roster in process memory and pushes every
// message and roster change to every connected client. All state is owned by
// the instance; nothing survives process exit.
type RelayServer struct {
	log     *log.Logger
	stats   stats.StatsProvider
	httpSrv *http.Server

	registerChan   chan *Client
	deRegisterChan chan *Client
	publishChan    chan *publishReq
	stop           chan stopReq
	// done is closed when Run returns; senders on the channels above
	// select against it so they never block on a stopped run loop.
	done chan struct{}

	allowedOrigins []string

	// run-loop owned; never touched outside Run
	messages []types.Message
	clients  map[*Client]struct{}
	users    map[string]*Client
}

func NewRelayServer(mux *http.ServeMux, logger *log.Logger, su stats.StatsProvider, cfg *config.Config) *RelayServer {
	rs := &RelayServer{
		log:            logger,
		stats:          su,
		registerChan:   make(chan *Client, 16),
		deRegisterChan: make(chan *Client, 16),
		publishChan:    make(chan *publishReq, 256),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
		allowedOrigins: cfg.AllowedOrigins,
		clients:        make(map[*Client]struct{}),
		users:          make(map[string]*Client),
	}

	for _, metric := range []string{"NumConnections", "NumRosterEntries", "MessagesBroadcast"} {
		su.RegisterMetric(metric)
	}

	mux.HandleFunc("GET /ws", rs.serveWs)
	mux.HandleFunc("GET /healthz", rs.healthz)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(rs.corsOrigins()),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	rs.httpSrv = &http.Server{
		Addr:    cfg.RelayAddr,
		Handler: h,
	}

	return rs
}

// corsOrigins returns the configured origins, or the permissive wildcard
// when none are set. Restrict in production.
func (rs *RelayServer) corsOrigins() []string {
	if len(rs.allowedOrigins) == 0 {
		return []string{"*"}
	}
	return rs.allowedOrigins
}

func (rs *RelayServer) Run() {
	defer close(rs.done)

	for {
		select {
		case client := <-rs.registerChan:
			rs.handleRegister(client)
		case client := <-rs.deRegisterChan:
			rs.handleDeregister(client)
		case req := <-rs.publishChan:
			rs.handlePublish(req)
		case req := <-rs.stop:
			rs.log.Println("stopping relay, disconnecting clients")
			for client := range rs.clients {
				client.stopClient()
			}
			close(req.done)
			return
		}
	}
}

// handleRegister adds a connection to the roster. A reconnect for the same
// user id replaces the prior connection rather than accumulating a duplicate
// entry. The full history goes to the new connection only; the roster goes
// to everyone.
func (rs *RelayServer) handleRegister(c *Client) {
	rs.log.Printf("adding connection from %q", c.user.UserId)

	if prior, ok := rs.users[c.user.UserId]; ok {
		rs.log.Printf("replacing stale connection for %q", c.user.UserId)
		delete(rs.clients, prior)
		prior.stopClient()
		rs.stats.Decr("NumConnections")
		// keep the original online-since across the reconnect
		c.user.OnlineSince = prior.user.OnlineSince
	} else {
		rs.stats.Incr("NumRosterEntries")
	}

	rs.clients[c] = struct{}{}
	rs.users[c.user.UserId] = c
	rs.stats.Incr("NumConnections")

	c.queueEvent(PreviousMessagesEvent(slices.Clone(rs.messages)))
	rs.broadcast(UsersEvent(rs.roster()))
}

// handleDeregister removes the connection and, when it still owns its roster
// entry, rebroadcasts the shrunken roster. History is retained.
func (rs *RelayServer) handleDeregister(c *Client) {
	if _, ok := rs.clients[c]; !ok {
		// already replaced by a reconnect
		return
	}

	rs.log.Printf("removing connection from %q", c.user.UserId)
	delete(rs.clients, c)
	rs.stats.Decr("NumConnections")

	if rs.users[c.user.UserId] == c {
		delete(rs.users, c.user.UserId)
		rs.stats.Decr("NumRosterEntries")
		rs.broadcast(UsersEvent(rs.roster()))
	}
}

// handlePublish appends the message to the in-memory history and broadcasts
// it to every connection, the sender included; senders reconcile their own
// echo idempotently.
func (rs *RelayServer) handlePublish(req *publishReq) {
	id, err := shortid.Generate()
	if err != nil {
		rs.log.Println("generate message id:", err)
		return
	}

	msg := types.Message{
		Id:          id,
		Text:        req.publish.Text,
		SenderId:    req.client.user.UserId,
		IsAutomated: req.publish.IsAutomated && req.client.user.IsAdmin,
		Sender: types.SenderSnapshot{
			Name:    req.client.user.Name,
			Avatar:  req.client.user.Avatar,
			IsAdmin: req.client.user.IsAdmin,
			Tags:    req.client.user.Tags,
		},
		CreatedAt: Now(),
	}

	rs.messages = append(rs.messages, msg)
	rs.broadcast(MessageEvent(msg))
	rs.stats.Incr("MessagesBroadcast")
}

func (rs *RelayServer) roster() []types.PresenceEntry {
	roster := make([]types.PresenceEntry, 0, len(rs.users))
	for _, client := range rs.users {
		roster = append(roster, client.user)
	}

	slices.SortFunc(roster, func(a, b types.PresenceEntry) int {
		if c := a.OnlineSince.Compare(b.OnlineSince); c != 0 {
			return c
		}
		return strings.Compare(a.UserId, b.UserId)
	})

	return roster
}

func (rs *RelayServer) broadcast(event *ServerEvent) {
	for client := range rs.clients {
		client.queueEvent(event)
	}
}

// serveWs upgrades the connection after validating the handshake identity.
// Connections without user_id and user_name are rejected before the upgrade,
// no partial join.
func (rs *RelayServer) serveWs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userId := q.Get("user_id")
	userName := q.Get("user_name")
	if userId == "" || userName == "" {
		http.Error(w, ErrHandshakeRejected.Error(), http.StatusBadRequest)
		return
	}

	entry := types.PresenceEntry{
		UserId:      userId,
		Name:        userName,
		Avatar:      q.Get("user_avatar"),
		IsAdmin:     q.Get("is_admin") == "true",
		OnlineSince: Now(),
	}
	if entry.Avatar == "" {
		entry.Avatar = types.DefaultAvatar
	}
	if entry.IsAdmin {
		entry.Avatar = types.AdminAvatar
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(rs.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(rs.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.log.Println("error upgrading connection:", err)
		return
	}

	client := NewClient(entry, conn, rs, rs.log)
	select {
	case rs.registerChan <- client:
	case <-rs.done:
		conn.Close()
		return
	}
	go client.Write()
	go client.Read()
}

func (rs *RelayServer) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (rs *RelayServer) Start() error {
	rs.log.Printf("starting relay on %s\n", rs.httpSrv.Addr)
	return rs.httpSrv.ListenAndServe()
}

func (rs *RelayServer) Shutdown(ctx context.Context) error {
	rs.log.Println("shutting down relay...")
	if err := rs.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}

	req := stopReq{done: make(chan struct{})}
	select {
	case rs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	rs.log.Println("relay shutdown complete")
	return nil
}
