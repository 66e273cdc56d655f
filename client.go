package server

import (
	"context"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"gladewood/server/internal/net/proto"
)

const clientInboxSize = 256

// Client is the connector side of the transport. It dials the server,
// sends one message per outbound stream, and collects inbound streams
// into a buffered inbox consumed with TryReceive.
type Client struct {
	conn   quic.Connection
	inbox  chan proto.Message
	ctx    context.Context
	cancel context.CancelFunc
	log    *logrus.Entry
}

// Dial connects to a server address and starts the receive loop.
func Dial(ctx context.Context, addr string, logger *logrus.Logger) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, clientTLSConfig(), quicConfig())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		inbox:  make(chan proto.Message, clientInboxSize),
		ctx:    ctx,
		cancel: cancel,
		log:    logger.WithField("component", "client"),
	}
	go c.receiveLoop()
	return c, nil
}

func (c *Client) receiveLoop() {
	for {
		stream, err := c.conn.AcceptUniStream(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.WithError(err).Info("connection closed")
			}
			c.cancel()
			return
		}
		go c.readStream(stream)
	}
}

func (c *Client) readStream(stream quic.ReceiveStream) {
	data, err := io.ReadAll(io.LimitReader(stream, proto.MaxMessageSize+1))
	if err != nil {
		c.log.WithError(err).Warn("dropping unreadable stream")
		return
	}
	if len(data) > proto.MaxMessageSize {
		stream.CancelRead(0)
		c.log.Warn("dropping oversized message")
		return
	}
	msg, err := proto.Decode(data)
	if err != nil {
		c.log.WithError(err).Warn("dropping undecodable message")
		return
	}
	select {
	case c.inbox <- msg:
	default:
		c.log.Warn("inbox full, dropping message")
	}
}

// Send delivers one message on its own stream.
func (c *Client) Send(msg proto.Message) error {
	return sendMessage(c.ctx, c.conn, msg)
}

// TryReceive returns the next buffered inbound message without
// blocking.
func (c *Client) TryReceive() (proto.Message, bool) {
	select {
	case msg := <-c.inbox:
		return msg, true
	default:
		return nil, false
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.CloseWithError(0, "client closed")
}
