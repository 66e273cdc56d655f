package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"gladewood/server/internal/net/proto"
)

// alpnProtocol identifies the game protocol during the TLS handshake.
const alpnProtocol = "gladewood/1"

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}

// Server accepts QUIC connections and runs two tasks per connection: a
// receive loop that turns inbound unidirectional streams into hub
// messages, and a tick loop that pushes the hub's outbound messages
// back, each on its own stream. A failure on either side tears down
// that connection only.
type Server struct {
	hub      *Hub
	cfg      Config
	log      *logrus.Entry
	listener *quic.Listener
}

// NewServer wraps a hub with the QUIC accept loop.
func NewServer(hub *Hub, cfg Config, logger *logrus.Logger) *Server {
	return &Server{
		hub: hub,
		cfg: cfg.normalized(),
		log: logger.WithField("component", "quic"),
	}
}

// Listen binds the UDP listener with a fresh TLS identity. Serve calls
// it implicitly; tests call it directly to learn the bound address.
func (s *Server) Listen() error {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return fmt.Errorf("build TLS config: %w", err)
	}
	ln, err := quic.ListenAddr(s.cfg.ListenAddr, tlsConf, quicConfig())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is canceled. Accept failures for
// individual connections never stop the loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer s.listener.Close()

	s.log.WithField("addr", s.listener.Addr().String()).Info("accepting connections")
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn quic.Connection) {
	connID := uuid.NewString()
	log := s.log.WithField("conn", connID)
	log.WithField("remote", conn.RemoteAddr().String()).Info("connection accepted")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.hub.Disconnect(connID)

	go s.tickLoop(ctx, cancel, conn, connID, log)

	// Each inbound stream carries exactly one client message. Streams
	// are independent: arrival order carries no meaning, so decoding
	// happens on its own goroutine per stream.
	for {
		stream, err := conn.AcceptUniStream(ctx)
		if err != nil {
			log.WithError(err).Info("connection closed")
			return
		}
		go s.readStream(connID, stream, log)
	}
}

func (s *Server) tickLoop(ctx context.Context, cancel context.CancelFunc, conn quic.Connection, connID string, log *logrus.Entry) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, msg := range s.hub.Tick(connID) {
				if err := sendMessage(ctx, conn, msg); err != nil {
					log.WithError(err).Info("send failed, stopping connection tasks")
					cancel()
					return
				}
			}
		}
	}
}

func (s *Server) readStream(connID string, stream quic.ReceiveStream, log *logrus.Entry) {
	msg, err := readMessage(stream)
	if err != nil {
		s.hub.RecordDecodeFailure()
		log.WithError(err).Warn("dropping undecodable message")
		return
	}
	s.hub.HandleMessage(connID, msg)
}

// sendMessage writes one encoded message on a fresh unidirectional
// stream and closes its send side.
func sendMessage(ctx context.Context, conn quic.Connection, msg proto.Message) error {
	data, err := proto.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if _, err := stream.Write(data); err != nil {
		stream.CancelWrite(0)
		return fmt.Errorf("write message: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("finish stream: %w", err)
	}
	return nil
}

// readMessage reads one message from a stream, refusing to buffer more
// than the protocol size ceiling.
func readMessage(stream quic.ReceiveStream) (proto.Message, error) {
	data, err := io.ReadAll(io.LimitReader(stream, proto.MaxMessageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(data) > proto.MaxMessageSize {
		stream.CancelRead(0)
		return nil, proto.ErrTooLarge
	}
	return proto.Decode(data)
}
