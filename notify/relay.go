package notify

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deckfm/logger"
)

const (
	relayPingInterval = 30 * time.Second
	relayWriteTimeout = 5 * time.Second
	backoffInitial    = time.Second
	backoffMax        = time.Minute
)

// RelayListener subscribes to a webhook relay over a persistent websocket.
// The relay forwards repository push deliveries; the listener acks each one
// and signals when the queue log file was touched. The connection reconnects
// with capped exponential backoff and keeps itself alive with periodic pings.
type RelayListener struct {
	url   string
	token string
	repo  string
	path  string

	updates chan struct{}
	done    chan struct{}
	once    sync.Once
}

type relayDelivery struct {
	Header map[string][]string `json:"Header"`
	Body   string              `json:"Body"`
}

type relayAck struct {
	Status int                 `json:"Status"`
	Header map[string][]string `json:"Header"`
	Body   string              `json:"Body"`
}

// NewRelayListener starts listening for pushes to repo that touch path.
func NewRelayListener(url, token, repo, path string) *RelayListener {
	l := &RelayListener{
		url:     url,
		token:   token,
		repo:    repo,
		path:    path,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Updates implements Notifier.
func (l *RelayListener) Updates() <-chan struct{} {
	return l.updates
}

// Close implements Notifier.
func (l *RelayListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *RelayListener) run() {
	backoff := backoffInitial
	for {
		select {
		case <-l.done:
			return
		default:
		}

		err := l.listen()
		if err != nil {
			logger.Warn("webhook relay disconnected", logger.ErrorField(err))
		}

		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (l *RelayListener) listen() error {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", l.token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(l.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("webhook relay connected", logger.String("url", l.url))

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(relayPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-l.done:
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		var delivery relayDelivery
		if err := json.Unmarshal(data, &delivery); err != nil {
			logger.Warn("invalid relay payload", logger.ErrorField(err))
			continue
		}
		body, err := base64.StdEncoding.DecodeString(delivery.Body)
		if err != nil {
			logger.Warn("invalid relay body encoding", logger.ErrorField(err))
			continue
		}

		if pushTouchesQueue(body, l.repo, l.path) {
			logger.Debug("queue log changed (relay)")
			signal(l.updates)
		}

		ack := relayAck{
			Status: http.StatusOK,
			Header: map[string][]string{},
			Body:   base64.StdEncoding.EncodeToString([]byte("OK")),
		}
		ackData, err := json.Marshal(ack)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, ackData); err != nil {
			return err
		}
	}
}
