package gmlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/udisondev/grimoire/internal/config"
	"github.com/udisondev/grimoire/internal/game/skill"
)

// Server accepts executor links from spell servers.
type Server struct {
	cfg       config.GMLinkConfig
	executor  *Executor
	tokenHash []byte
	upgrader  websocket.Upgrader

	peers atomic.Int32

	listener net.Listener
	httpSrv  *http.Server
	mu       sync.Mutex
}

// NewServer creates a Server. cfg.TokenHash must be a bcrypt hash.
func NewServer(cfg config.GMLinkConfig, executor *Executor) (*Server, error) {
	if cfg.TokenHash == "" {
		return nil, errors.New("gmlink token hash is required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.TokenHash)); err != nil {
		return nil, fmt.Errorf("invalid gmlink token hash: %w", err)
	}

	return &Server{
		cfg:       cfg,
		executor:  executor,
		tokenHash: []byte(cfg.TokenHash),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}, nil
}

// HashToken returns the bcrypt hash to put in config for a peer token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(hash), nil
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(DelegatePath, s.handleDelegate).Methods(http.MethodGet)
	return r
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	return int(s.peers.Load())
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и все соединения.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run слушает cfg.BindAddress:cfg.Port и обслуживает соединения до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener.
// Используется для тестирования с произвольным listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = ln
	s.httpSrv = srv
	s.mu.Unlock()

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gmlink shutdown", "error", err)
			srv.Close()
		}
	}()

	slog.Info("gmlink server started", "address", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving gmlink: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok peers=%d\n", s.Peers())
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(TokenHeader)
	if token == "" || bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)) != nil {
		slog.Warn("gmlink peer rejected", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gmlink upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.peers.Add(1)
	defer s.peers.Add(-1)
	slog.Info("gmlink peer connected", "remote", r.RemoteAddr)

	s.servePeer(r.Context(), conn, r.RemoteAddr)
}

// servePeer reads commands and answers acks until the peer disconnects.
func (s *Server) servePeer(ctx context.Context, conn *websocket.Conn, remote string) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	s.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline(conn)
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		s.extendReadDeadline(conn)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("gmlink peer read failed", "remote", remote, "error", err)
			}
			slog.Info("gmlink peer disconnected", "remote", remote)
			return
		}
		s.extendReadDeadline(conn)

		var (
			cmd skill.Command
			ack skill.Ack
		)
		if err := json.Unmarshal(raw, &cmd); err != nil {
			ack = skill.Ack{Error: fmt.Sprintf("malformed command: %v", err), Code: skill.CodeInvalidCommand}
		} else {
			ack = s.executor.Apply(ctx, cmd)
		}

		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := conn.WriteJSON(ack); err != nil {
			slog.Error("gmlink ack write failed", "remote", remote, "commandID", cmd.ID, "error", err)
			return
		}
	}
}

func (s *Server) extendReadDeadline(conn *websocket.Conn) {
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
}
