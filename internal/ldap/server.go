package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/metrics"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("ldap: server closed")

// Passwords is the password capability the server needs.
type Passwords interface {
	// VerifyPassword returns an ErrUnauthorized error for unknown users and wrong
	// passwords alike.
	VerifyPassword(ctx context.Context, userID, password string) error
	RegisterPassword(ctx context.Context, userID, password string) error
}

// Config holds the LDAP server settings.
type Config struct {
	Host               string
	Port               int
	BaseDN             string
	AllowAnonymousRead bool
}

// Server accepts LDAP connections and serves each one on its own goroutine.
type Server struct {
	addr               string
	tree               *tree
	allowAnonymousRead bool
	backend            usecase.BackendHandler
	passwords          Passwords
	txManager          database.TxManager
	metrics            metrics.BusinessMetrics
	connections        metrics.ConnectionMetrics
	logger             *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new LDAP server. Every write of one request runs in a single
// transaction of txManager.
func NewServer(
	cfg Config,
	backend usecase.BackendHandler,
	passwords Passwords,
	txManager database.TxManager,
	businessMetrics metrics.BusinessMetrics,
	connectionMetrics metrics.ConnectionMetrics,
	logger *slog.Logger,
) (*Server, error) {
	t, err := newTree(cfg.BaseDN)
	if err != nil {
		return nil, fmt.Errorf("invalid base DN %q: %w", cfg.BaseDN, err)
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if connectionMetrics == nil {
		connectionMetrics = metrics.NewNoOpConnectionMetrics()
	}
	return &Server{
		addr:               fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		tree:               t,
		allowAnonymousRead: cfg.AllowAnonymousRead,
		backend:            backend,
		passwords:          passwords,
		txManager:          txManager,
		metrics:            businessMetrics,
		connections:        connectionMetrics,
		logger:             logger,
		conns:              make(map[*conn]struct{}),
	}, nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	if err := s.Serve(ctx, ln); err != nil && !errors.Is(err, ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on ln until Shutdown. ctx is the parent context of every
// request served.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("starting ldap server",
		slog.String("addr", ln.Addr().String()),
		slog.String("base_dn", s.tree.baseDN()))

	for {
		netConn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		c := s.newConn(netConn)
		if !s.track(c) {
			_ = netConn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve(ctx)
		}()
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections, closes the open ones and waits for their
// goroutines to return or ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down ldap server")

	s.mu.Lock()
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		_ = c.netConn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers c and reserves its goroutine slot. It fails once the server is closed.
func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// principal loads the identity of a user who just authenticated.
func (s *Server) principal(ctx context.Context, userID string) (*Principal, error) {
	groups, err := s.backend.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		names = append(names, g.DisplayName)
	}
	return &Principal{UserID: userID, Groups: names}, nil
}
