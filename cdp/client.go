// Package cdp implements a Chrome DevTools Protocol client over a websocket.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	cdpext "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"

	"github.com/pagebatch/pagebatch/cdp/domains"
	"github.com/pagebatch/pagebatch/log"
)

// ErrClosed is returned when executing commands on a closed client.
var ErrClosed = errors.New("CDP connection closed")

var _ cdpext.Executor = &Client{}

// Client manages CDP communication with the browser.
type Client struct {
	logger *log.Logger

	Browser   domains.Browser
	Emulation domains.Emulation
	Input     domains.Input
	Page      domains.Page
	Runtime   domains.Runtime
	Target    domains.Target

	conn      *connection
	msgID     int64
	msgSubsMu sync.Mutex
	msgSubs   map[int64]chan *cdproto.Message
	watcher   *eventWatcher

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wsURL     string
}

// NewClient returns a new Client that is unusable until a CDP connection is
// established with Connect.
func NewClient(logger *log.Logger) *Client {
	c := &Client{
		logger:  logger,
		msgSubs: make(map[int64]chan *cdproto.Message),
		watcher: newEventWatcher(),
		done:    make(chan struct{}),
	}

	c.Browser = domains.NewBrowser(c)
	c.Emulation = domains.NewEmulation(c)
	c.Input = domains.NewInput(c)
	c.Page = domains.NewPage(c)
	c.Runtime = domains.NewRuntime(c)
	c.Target = domains.NewTarget(c)

	return c
}

// Connect to the browser that exposes a CDP API at wsURL.
func (c *Client) Connect(ctx context.Context, wsURL string) (err error) {
	if c.wsURL != "" {
		return fmt.Errorf("CDP connection already established to %q", c.wsURL)
	}

	if c.conn, err = newConnection(ctx, wsURL, c.logger); err != nil {
		return err
	}
	c.logger.Debugf("cdp", "established CDP connection to %q", wsURL)
	c.wsURL = wsURL

	go c.recvLoop()

	return nil
}

// Done is closed once the connection to the browser is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Pending commands fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.close()
	}
	c.shutdown(ErrClosed)

	return err
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.msgSubsMu.Lock()
		c.closeErr = err
		c.msgSubsMu.Unlock()
		close(c.done)
	})
}

func (c *Client) err() error {
	c.msgSubsMu.Lock()
	defer c.msgSubsMu.Unlock()

	if c.closeErr == nil || errors.Is(c.closeErr, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, c.closeErr)
}

// Execute implements cdproto.Executor and performs a synchronous send and
// receive. The command goes to the session found in ctx, if any.
func (c *Client) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	if c.conn == nil {
		return fmt.Errorf("executing %s: %w", method, ErrClosed)
	}
	select {
	case <-c.done:
		return fmt.Errorf("executing %s: %w", method, c.err())
	default:
	}

	msg := &cdproto.Message{
		ID:     atomic.AddInt64(&c.msgID, 1),
		Method: cdproto.MethodType(method),
	}
	if params != nil {
		buf, err := easyjson.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding %s params: %w", method, err)
		}
		msg.Params = buf
	}
	if sid := GetSessionID(ctx); sid != "" {
		msg.SessionID = target.SessionID(sid)
	}
	c.logger.Debugf("Client:Execute", "wsURL:%q sid:%q method:%q", c.wsURL, msg.SessionID, method)

	// Register for the reply before sending to not race with the receiver.
	recvCh := make(chan *cdproto.Message, 1)
	c.msgSubsMu.Lock()
	c.msgSubs[msg.ID] = recvCh
	c.msgSubsMu.Unlock()
	defer func() {
		c.msgSubsMu.Lock()
		delete(c.msgSubs, msg.ID)
		c.msgSubsMu.Unlock()
	}()

	if err := c.conn.writeMessage(msg); err != nil {
		return fmt.Errorf("executing %s: %w", method, err)
	}

	select {
	case reply := <-recvCh:
		switch {
		case reply.Error != nil:
			return fmt.Errorf("executing %s: %w", method, reply.Error)
		case res != nil:
			if err := easyjson.Unmarshal(reply.Result, res); err != nil {
				return fmt.Errorf("decoding %s result: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return fmt.Errorf("executing %s: %w", method, c.err())
	case <-ctx.Done():
		return fmt.Errorf("executing %s: %w", method, ctx.Err())
	}
}

// Subscribe returns a channel that receives the given events of the session
// found in ctx, and a function that unsubscribes and closes the channel.
func (c *Client) Subscribe(ctx context.Context, events ...cdproto.MethodType) (<-chan *Event, func()) {
	return c.watcher.subscribe(GetSessionID(ctx), events...)
}

func (c *Client) recvLoop() {
	for {
		msg, err := c.conn.readMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debugf("Client:recvLoop", "wsURL:%q err:%v", c.wsURL, err)
			}
			c.shutdown(err)
			return
		}

		switch {
		case msg.Method != "":
			evt, err := cdproto.UnmarshalMessage(msg)
			if err != nil {
				c.logger.Debugf("Client:recvLoop", "skipping event %q: %v", msg.Method, err)
				continue
			}
			dropped := c.watcher.notify(&Event{
				Name:      msg.Method,
				Data:      evt,
				SessionID: string(msg.SessionID),
			})
			if dropped > 0 {
				c.logger.Debugf("Client:recvLoop", "event %q dropped for %d subscribers", msg.Method, dropped)
			}
		case msg.ID > 0:
			c.msgSubsMu.Lock()
			ch, ok := c.msgSubs[msg.ID]
			c.msgSubsMu.Unlock()
			if !ok {
				c.logger.Debugf("Client:recvLoop", "no one waits for reply %d", msg.ID)
				continue
			}
			ch <- msg
		default:
			c.logger.Errorf("cdp", "ignoring malformed incoming CDP message (missing id or method): %#v", msg)
		}
	}
}
