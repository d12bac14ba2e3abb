// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcserver exposes the engine's operation surface as JSON-RPC
// over websocket and plain HTTP POST.  The transport carries no
// authentication; an outer plane is expected to terminate auth and hand
// player ids to this server.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/sheegaon/wordpool/internal/engine"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

const (
	// defaultMaxClients is the connection cap applied when the config
	// leaves MaxClients at zero.
	defaultMaxClients = 100

	// maxRequestSize bounds a single JSON-RPC request body.
	maxRequestSize = 1 << 16

	// websocketPingInterval keeps idle websocket clients alive.
	websocketPingInterval = 30 * time.Second
)

// Config holds the server's collaborators and listen addresses.
type Config struct {
	// Listeners are the TCP addresses to listen on.
	Listeners []string

	// Engine is the assembled game engine the methods dispatch into.
	Engine *engine.Engine

	// MaxClients caps concurrent connections per listener.  Zero
	// selects defaultMaxClients.
	MaxClients int
}

// Server is the JSON-RPC server.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	wg        sync.WaitGroup
	listeners []net.Listener
}

// New returns a server bound to its listen addresses.  The listeners
// are opened immediately so address conflicts surface before Run.
func New(cfg *Config) (*Server, error) {
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}

	s := &Server{
		cfg: *cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxRequestSize,
			WriteBufferSize: maxRequestSize,
		},
	}
	for _, addr := range cfg.Listeners {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			s.closeListeners()
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, netutil.LimitListener(l, maxClients))
	}
	return s, nil
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		l.Close()
	}
}

// Run serves requests until the context is canceled.
func (s *Server) Run(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePost)
	mux.HandleFunc("/ws", s.handleWebsocket)

	httpServer := &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	for _, l := range s.listeners {
		s.wg.Add(1)
		go func(l net.Listener) {
			defer s.wg.Done()
			log.Infof("RPC server listening on %s", l.Addr())
			err := httpServer.Serve(l)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Serve on %s: %v", l.Addr(), err)
			}
		}(l)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("RPC server shutdown: %v", err)
	}
	s.wg.Wait()
	log.Infof("RPC server stopped")
}

// request is a JSON-RPC 1.0/2.0 style request.
type request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// rpcError is the error member of a response.
type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// response is a JSON-RPC response.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result"`
	Error  *rpcError       `json:"error"`
}

// handlePost serves a single JSON-RPC request per HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp := s.dispatch(r.Context(), body)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}

// handleWebsocket upgrades the connection and serves requests until the
// client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	log.Debugf("Websocket client connected from %s", r.RemoteAddr)

	var writeMtx sync.Mutex
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(websocketPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMtx.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(5*time.Second))
				writeMtx.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				log.Debugf("Websocket read from %s: %v", r.RemoteAddr, err)
			}
			return
		}

		resp := s.dispatch(r.Context(), body)
		writeMtx.Lock()
		err = conn.WriteJSON(resp)
		writeMtx.Unlock()
		if err != nil {
			log.Debugf("Websocket write to %s: %v", r.RemoteAddr, err)
			return
		}
	}
}

// dispatch parses one request, runs its handler, and shapes the
// response.
func (s *Server) dispatch(ctx context.Context, body []byte) *response {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return &response{Error: &rpcError{
			Code:    "parse_error",
			Message: "malformed JSON-RPC request",
		}}
	}

	handler, ok := methods[req.Method]
	if !ok {
		return &response{ID: req.ID, Error: &rpcError{
			Code:    "method_not_found",
			Message: fmt.Sprintf("unknown method %q", req.Method),
		}}
	}

	result, err := handler(ctx, s.cfg.Engine, req.Params)
	if err != nil {
		code := wireCode(err)
		if code == codeInternal {
			log.Errorf("Method %s: %v", req.Method, err)
		} else {
			log.Debugf("Method %s rejected: %v", req.Method, err)
		}
		return &response{ID: req.ID, Error: &rpcError{
			Code:    code,
			Message: err.Error(),
		}}
	}
	return &response{ID: req.ID, Result: result}
}
