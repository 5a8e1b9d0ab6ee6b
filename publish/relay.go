// Package publish forwards assembled 10 ms PCM frames to the room relay so
// every participant hears the broadcast. The relay connection is a plain
// websocket: one JSON hello declaring the stream format, then one binary
// message per frame.
package publish

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deckfm/logger"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 20 * time.Second
	tokenTTL     = 6 * time.Hour
)

// Options configure a relay publisher.
type Options struct {
	URL        string // websocket endpoint of the room relay
	APIKey     string
	Secret     string
	Room       string
	Identity   string
	SampleRate int
	Channels   int
}

// RelayPublisher publishes frames to the room relay. It implements the frame
// sink consumed by the assembler.
type RelayPublisher struct {
	opts Options

	mu     sync.Mutex
	conn   *websocket.Conn
	frames uint64
	done   chan struct{}
}

type helloMessage struct {
	Room       string `json:"room"`
	Identity   string `json:"identity"`
	Track      string `json:"track"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// NewRelayPublisher returns an unconnected publisher.
func NewRelayPublisher(opts Options) *RelayPublisher {
	return &RelayPublisher{opts: opts}
}

// Connect dials the relay, authenticates and announces the stream format.
func (p *RelayPublisher) Connect() error {
	token, err := AccessToken(p.opts.APIKey, p.opts.Secret, p.opts.Room, p.opts.Identity, tokenTTL)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(p.opts.URL, header)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	hello := helloMessage{
		Room:       p.opts.Room,
		Identity:   p.opts.Identity,
		Track:      "music",
		SampleRate: p.opts.SampleRate,
		Channels:   p.opts.Channels,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return fmt.Errorf("relay hello: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.keepalive(conn)

	logger.Info("connected to room relay",
		logger.String("room", p.opts.Room),
		logger.String("identity", p.opts.Identity))
	return nil
}

func (p *RelayPublisher) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.conn != conn {
				p.mu.Unlock()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			p.mu.Unlock()
			if err != nil {
				logger.Warn("relay ping failed", logger.ErrorField(err))
				return
			}
		}
	}
}

// CaptureFrame sends one fixed-size frame as a binary message.
func (p *RelayPublisher) CaptureFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("relay not connected")
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	p.frames++
	if p.frames == 1 {
		logger.Info("first frame published to relay")
	} else if p.frames%6000 == 0 { // once a minute at 100 frames/s
		logger.Debug("frames published", logger.Uint64("frames", p.frames))
	}
	return nil
}

// Close tears the relay connection down.
func (p *RelayPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	close(p.done)
	err := p.conn.Close()
	p.conn = nil
	return err
}
