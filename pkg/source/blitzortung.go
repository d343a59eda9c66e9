package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// blitzortungHosts are the public websocket frontends; one is picked at
// random per connection for load balancing.
var blitzortungHosts = []string{"ws1", "ws3", "ws7", "ws8"}

// blitzortungInit is the subscription message the servers expect before
// they start streaming strikes.
const blitzortungInit = `{"a": 111}`

// BlitzortungSource streams live lightning strikes from blitzortung.org.
// Connection loss triggers reconnection with a fixed delay, up to a
// bounded number of consecutive failed attempts.
type BlitzortungSource struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	log    *zap.Logger
	dialer *websocket.Dialer
}

// NewBlitzortungSource builds a live lightning source. Zero values fall
// back to a 5s delay and 10 attempts.
func NewBlitzortungSource(reconnectDelay time.Duration, maxAttempts int, log *zap.Logger) *BlitzortungSource {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BlitzortungSource{
		ReconnectDelay:       reconnectDelay,
		MaxReconnectAttempts: maxAttempts,
		log:                  log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			// The blitzortung frontends serve certificates that do not
			// always match the rotating hostnames.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

func (b *BlitzortungSource) Name() string { return "blitzortung" }

// Run connects and streams strikes until ctx is cancelled or the
// reconnect budget is exhausted.
func (b *BlitzortungSource) Run(ctx context.Context, out chan<- Strike) error {
	failures := 0
	for {
		conn, host, err := b.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= b.MaxReconnectAttempts {
				return fmt.Errorf("blitzortung: giving up after %d connection attempts: %w", failures, err)
			}
			b.log.Warn("blitzortung connection failed, retrying",
				zap.Int("attempt", failures),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.ReconnectDelay):
			}
			continue
		}

		failures = 0
		b.log.Info("connected to blitzortung", zap.String("host", host))
		err = b.listen(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("blitzortung stream interrupted, reconnecting", zap.Error(err))
	}
}

func (b *BlitzortungSource) connect(ctx context.Context) (*websocket.Conn, string, error) {
	host := blitzortungHosts[rand.Intn(len(blitzortungHosts))]
	url := fmt.Sprintf("wss://%s.blitzortung.org:443/", host)

	conn, _, err := b.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, host, fmt.Errorf("dial %s: %w", url, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(blitzortungInit)); err != nil {
		conn.Close()
		return nil, host, fmt.Errorf("send init message: %w", err)
	}
	return conn, host, nil
}

// strikeMessage is the decoded payload of one lightning detection. The
// feed reports time in milliseconds since the epoch.
type strikeMessage struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time int64   `json:"time"`
}

func (b *BlitzortungSource) listen(ctx context.Context, conn *websocket.Conn, out chan<- Strike) error {
	// ReadMessage blocks; closing the connection is the only way to
	// unblock it when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg strikeMessage
		if err := json.Unmarshal([]byte(decodeMessage(string(data))), &msg); err != nil {
			b.log.Debug("undecodable strike message skipped", zap.Error(err))
			continue
		}

		strike := Strike{
			Latitude:  msg.Lat,
			Longitude: msg.Lon,
			Timestamp: time.UnixMilli(msg.Time).UTC(),
		}
		select {
		case out <- strike:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decodeMessage expands the LZW-style compression the blitzortung feed
// applies to its JSON payloads. Codes below 256 are literal characters;
// higher codes index a dictionary built as the message is read.
func decodeMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) == 0 {
		return ""
	}

	dict := make(map[int]string)
	code := 256
	prev := string(runes[0])
	firstChar := prev

	var sb strings.Builder
	sb.WriteString(prev)

	for i := 1; i < len(runes); i++ {
		var entry string
		switch c := int(runes[i]); {
		case c < 256:
			entry = string(runes[i])
		default:
			if e, ok := dict[c]; ok {
				entry = e
			} else {
				entry = prev + firstChar
			}
		}
		sb.WriteString(entry)
		firstChar = string([]rune(entry)[0])
		dict[code] = prev + firstChar
		code++
		prev = entry
	}
	return sb.String()
}
