// ABOUTME: Websocket control server for a running mixgraph engine
// ABOUTME: Manages client sessions, dispatches commands and broadcasts meters
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Sendspin/mixgraph/internal/discovery"
	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/internal/version"
	"github.com/Sendspin/mixgraph/pkg/mixgraph"
)

// Config holds server configuration
type Config struct {
	Port          int
	Name          string
	Path          string
	EnableMDNS    bool
	MeterInterval time.Duration
}

// Server exposes an engine's mixers and a track store over websocket
type Server struct {
	config   Config
	serverID string
	log      *zap.SugaredLogger

	engine *mixgraph.Engine
	tracks *mixgraph.TrackStore
	mixers map[string]*mixgraph.Mixer

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	loaded   map[string]*mixgraph.Track
	loadedMu sync.Mutex

	clockStart  time.Time
	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected controller
type Client struct {
	ID       string
	Name     string
	Conn     *websocket.Conn
	sendChan chan interface{}
}

// New creates a server. mixers maps protocol names to mixers; the engine's
// master mixer is always available as "master".
func New(config Config, engine *mixgraph.Engine, tracks *mixgraph.TrackStore, mixers map[string]*mixgraph.Mixer) *Server {
	if config.Path == "" {
		config.Path = "/mixgraph"
	}
	if config.Name == "" {
		config.Name = version.Product
	}
	if config.MeterInterval <= 0 {
		config.MeterInterval = 100 * time.Millisecond
	}

	all := map[string]*mixgraph.Mixer{"master": engine.Master()}
	for name, mx := range mixers {
		all[name] = mx
	}

	s := &Server{
		config:     config,
		serverID:   uuid.New().String(),
		log:        logging.With("component", "control"),
		engine:     engine,
		tracks:     tracks,
		mixers:     all,
		mux:        http.NewServeMux(),
		clients:    make(map[string]*Client),
		loaded:     make(map[string]*mixgraph.Track),
		clockStart: time.Now(),
		stopChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Control is meant for trusted local networks
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	s.log.Infof("Control server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        s.config.Path,
			Version:     version.Version,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warnf("Failed to start mDNS advertisement: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunMeters(ctx)
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	s.log.Infof("WebSocket control listening on %s%s", addr, s.config.Path)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Infof("Control server shutting down...")
	case err := <-errChan:
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	cancel()
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	if serverErr != nil {
		return fmt.Errorf("control server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	s.log.Debugf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		return
	}
	s.shutdownMu.RUnlock()

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.log.Warnf("Error reading hello: %v", err)
		return
	}

	var hello ClientHello
	msgType, err := decode(data, &hello)
	if err != nil || msgType != TypeClientHello || hello.ClientID == "" || hello.Name == "" {
		s.writeDirect(conn, Error{Code: ErrCodeBadRequest, Message: "expected client/hello with client_id and name"})
		return
	}

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 64),
	}

	// hello is queued first so it precedes any broadcast
	client.sendChan <- Message{Type: TypeServerHello, Payload: s.hello()}

	s.clientsMu.Lock()
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		s.log.Warnf("Client ID %s already connected, rejecting duplicate", client.ID)
		s.writeDirect(conn, Error{Code: ErrCodeDuplicateID, Message: "client ID already connected"})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()
	s.log.Infof("Client connected: %s (ID: %s)", client.Name, client.ID)

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		<-writerDone
		s.log.Infof("Client disconnected: %s", client.Name)
	}()

	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

func (s *Server) hello() ServerHello {
	names := make([]string, 0, len(s.mixers))
	for name := range s.mixers {
		names = append(names, name)
	}
	sort.Strings(names)
	return ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		Software: version.String(),
		Device:   s.engine.Devices().Current(),
		Mixers:   names,
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.log.Warnf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debugf("Error writing to %s: %v", client.Name, err)
				client.Conn.Close()
				for range client.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				for range client.sendChan {
				}
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(client *Client, data []byte) {
	var cmd Command
	msgType, err := decode(data, &cmd)
	if err != nil {
		s.sendError(client, "", ErrCodeBadRequest, err.Error())
		return
	}

	switch msgType {
	case TypeClientCommand:
		if code, err := s.execute(cmd); err != nil {
			s.sendError(client, cmd.ID, code, err.Error())
		}
	default:
		s.sendError(client, "", ErrCodeBadRequest, "unknown message type: "+msgType)
	}
}

// sendMessage queues a message without blocking
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	select {
	case client.sendChan <- Message{Type: msgType, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

func (s *Server) sendError(client *Client, commandID, code, message string) {
	if err := s.sendMessage(client, TypeServerError, Error{Code: code, Message: message, CommandID: commandID}); err != nil {
		s.log.Debugf("Dropping error for %s: %v", client.Name, err)
	}
}

// writeDirect writes an error before the client is registered
func (s *Server) writeDirect(conn *websocket.Conn, e Error) {
	data, err := json.Marshal(Message{Type: TypeServerError, Payload: e})
	if err != nil {
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}

// RunMeters broadcasts meters every MeterInterval until ctx ends
func (s *Server) RunMeters(ctx context.Context) {
	ticker := time.NewTicker(s.config.MeterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(TypeServerMeters, s.Snapshot())
		}
	}
}

func (s *Server) broadcast(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if err := s.sendMessage(c, msgType, payload); err != nil {
			s.log.Debugf("Dropping %s for %s: %v", msgType, c.Name, err)
		}
	}
}

// Snapshot reads the current meters without touching the audio goroutine
func (s *Server) Snapshot() Meters {
	layer := s.engine.Layer()
	m := Meters{
		Timestamp:   time.Since(s.clockStart).Microseconds(),
		Device:      s.engine.Devices().Current(),
		DeviceState: s.engine.Devices().State().String(),
	}

	names := make([]string, 0, len(s.mixers))
	for name := range s.mixers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mx := s.mixers[name]
		if mx.IsDisposed() {
			continue
		}
		mm := MixerMeter{
			Name:      name,
			Volume:    mx.AggregateVolume(),
			Balance:   mx.AggregateBalance(),
			Frequency: mx.AggregateFrequency(),
		}
		if h := mx.Handle(); h != 0 {
			lvl := layer.Level(h)
			mm.Left, mm.Right = lvl.Left, lvl.Right
		}
		for _, member := range mx.Channels() {
			ch, ok := member.(mixgraph.Channel)
			if !ok {
				continue
			}
			cm := ChannelMeter{ID: ch.ID(), Playing: ch.Playing()}
			if tr, ok := ch.(*mixgraph.Track); ok {
				cm.Name = tr.Name()
				cm.PositionMs = tr.CurrentTime().Milliseconds()
				cm.LengthMs = tr.Length().Milliseconds()
			}
			if h := ch.Handle(); h != 0 {
				lvl := layer.Level(h)
				cm.Left, cm.Right = lvl.Left, lvl.Right
			}
			mm.Channels = append(mm.Channels, cm)
		}
		m.Mixers = append(m.Mixers, mm)
	}
	return m
}

// Tracks returns the names of loaded tracks
func (s *Server) Tracks() []string {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()
	names := make([]string, 0, len(s.loaded))
	for name := range s.loaded {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// decode unwraps an envelope into payload, returning the message type
func decode(data []byte, payload interface{}) (string, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("invalid message: %w", err)
	}
	if msg.Payload == nil {
		return msg.Type, nil
	}
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return "", fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return msg.Type, nil
}
