package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
	"github.com/oxtoacart/bpool"
	"golang.org/x/net/http/httpproxy"

	"github.com/pagebatch/pagebatch/log"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsBufferSize       = 1 << 20
	wsWriteTimeout     = 10 * time.Second
)

// connection is a websocket connection speaking CDP messages.
type connection struct {
	ws         *websocket.Conn
	wsURL      string
	logger     *log.Logger
	bufferPool *bpool.BufferPool

	writeMu sync.Mutex
}

func newConnection(ctx context.Context, wsURL string, logger *log.Logger) (*connection, error) {
	proxy := httpproxy.FromEnvironment().ProxyFunc()
	wd := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
		ReadBufferSize:   wsBufferSize,
		WriteBufferSize:  wsBufferSize,
		Proxy: func(req *http.Request) (*url.URL, error) {
			return proxy(req.URL)
		},
	}
	ws, resp, err := wd.DialContext(ctx, wsURL, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %q: %w", wsURL, err)
	}

	return &connection{
		ws:         ws,
		wsURL:      wsURL,
		logger:     logger,
		bufferPool: bpool.NewBufferPool(8),
	}, nil
}

func (c *connection) readMessage() (*cdproto.Message, error) {
	_, buf, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading from %q: %w", c.wsURL, err)
	}

	var msg cdproto.Message
	if err := easyjson.Unmarshal(buf, &msg); err != nil {
		return nil, fmt.Errorf("decoding CDP message: %w", err)
	}
	c.logger.Tracef("cdp:recv", "<- %s", buf)

	return &msg, nil
}

func (c *connection) writeMessage(msg *cdproto.Message) error {
	var encoder jwriter.Writer
	msg.MarshalEasyJSON(&encoder)
	if err := encoder.Error; err != nil {
		return fmt.Errorf("encoding CDP message: %w", err)
	}

	buf := c.bufferPool.Get()
	defer c.bufferPool.Put(buf)
	if _, err := encoder.DumpTo(buf); err != nil {
		return fmt.Errorf("encoding CDP message: %w", err)
	}
	c.logger.Tracef("cdp:send", "-> %s", buf.Bytes())

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, buf.Bytes()); err != nil {
		return fmt.Errorf("writing to %q: %w", c.wsURL, err)
	}

	return nil
}

// close sends a close frame and closes the underlying connection.
func (c *connection) close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	if err := c.ws.Close(); err != nil {
		return fmt.Errorf("closing connection to %q: %w", c.wsURL, err)
	}
	return nil
}
