package service

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"bracket_bot/internal/models"
	"bracket_bot/internal/modules/config"
	"bracket_bot/pkg/logger"
)

const pingPeriod = 20 * time.Second

// Client: брокер через WebSocket-мост к шлюзу. Запрос/ответ сопоставляются по id.
type Client struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	limiter *rate.Limiter

	seq atomic.Int64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int64]chan response
	done    chan struct{}

	writeMu sync.Mutex
}

func NewClient(cfg *config.Config) *Client {
	return NewClientAt(cfg.Broker.GatewayURL, cfg.Broker.RequestTimeout, cfg.Broker.RatePerSec)
}

func NewClientAt(url string, timeout time.Duration, perSec float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	return &Client{
		url:     url,
		timeout: timeout,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		pending: make(map[int64]chan response),
	}
}

// Connect открывает сокет к мосту и просит его подключиться к шлюзу host:port.
func (c *Client) Connect(ctx context.Context, host string, port int, clientID int) error {
	if c.IsConnected() {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, http.Header{})
	if err != nil {
		return errors.Wrapf(models.ErrConnectivity, "dial %s: %v", c.url, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)

	if err := c.call(ctx, opHello, helloArgs{Host: host, Port: port, ClientID: clientID}, nil); err != nil {
		c.drop(conn, err)
		return err
	}
	logger.Info("[GATEWAY] подключено %s → %s:%d client=%d", c.url, host, port, clientID)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.drop(conn, errors.New("disconnected"))
	return nil
}

// drop закрывает сокет и будит всех ожидающих ответа.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	close(c.done)
	pending := c.pending
	c.pending = make(map[int64]chan response)
	c.mu.Unlock()

	_ = conn.Close()
	for _, ch := range pending {
		ch <- response{Error: &wireError{Code: codeDisconnected, Message: cause.Error()}}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				logger.Warn("[GATEWAY] read: %v", err)
			}
			c.drop(conn, err)
			return
		}

		var resp response
		if err := sonic.Unmarshal(msg, &resp); err != nil {
			logger.Warn("[GATEWAY] битый кадр: %v", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// pingLoop: keepalive, иначе прокси рвут простаивающий сокет.
func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.timeout))
			c.writeMu.Unlock()
			if err != nil {
				c.drop(conn, err)
				return
			}
		}
	}
}

// call: один запрос к мосту. Обрыв и таймаут: ErrConnectivity.
func (c *Client) call(ctx context.Context, op string, args any, out any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.Wrapf(models.ErrConnectivity, "%s: not connected", op)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, op)
	}

	id := c.seq.Add(1)
	ch := make(chan response, 1)
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return errors.Wrapf(models.ErrConnectivity, "%s: connection lost", op)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := sonic.Marshal(request{ID: id, Op: op, Args: args})
	if err != nil {
		c.forget(id)
		return errors.Wrapf(err, "marshal %s", op)
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn, err)
		return errors.Wrapf(models.ErrConnectivity, "%s: write: %v", op, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var resp response
	select {
	case resp = <-ch:
	case <-timer.C:
		c.forget(id)
		return errors.Wrapf(models.ErrConnectivity, "%s: no response in %s", op, c.timeout)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}

	if resp.Error != nil {
		switch resp.Error.Code {
		case codeResolution:
			return errors.Wrapf(models.ErrResolution, "%s: %s", op, resp.Error.Message)
		case codeDisconnected:
			return errors.Wrapf(models.ErrConnectivity, "%s: %s", op, resp.Error.Message)
		}
		return errors.Errorf("%s: gateway error %s: %s", op, resp.Error.Code, resp.Error.Message)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return errors.Wrapf(sonic.Unmarshal(resp.Data, out), "decode %s", op)
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
