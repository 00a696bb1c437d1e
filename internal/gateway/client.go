package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

// Client is a minimal socket client for probes and tests.
type Client struct {
	conn *websocket.Conn
}

func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return &Client{conn: conn}, nil
}

func (c *Client) Send(ctx context.Context, event string, data any) error {
	env, err := arenadto.NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, c.conn, env)
}

func (c *Client) Read(ctx context.Context) (arenadto.Envelope, error) {
	var env arenadto.Envelope
	err := wsjson.Read(ctx, c.conn, &env)
	return env, err
}

// Await reads until a frame satisfies match, decoding its data into out.
// Frames that do not match are dropped.
func (c *Client) Await(ctx context.Context, event string, out any, match func() bool) error {
	for {
		env, err := c.Read(ctx)
		if err != nil {
			return fmt.Errorf("await %s: %w", event, err)
		}
		if env.Event != event {
			continue
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decode %s: %w", event, err)
			}
		}
		if match == nil || match() {
			return nil
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
