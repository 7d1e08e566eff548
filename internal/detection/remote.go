package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

// ErrDetectorClosed is returned by a RemoteDetector after Close.
var ErrDetectorClosed = errors.New("remote detector closed")

// RemoteOptions configures a RemoteDetector.
type RemoteOptions struct {
	// URL is the model server's websocket endpoint, e.g. ws://host:8765/ws.
	URL string

	// PoolSize bounds concurrent connections. Values < 1 mean 1.
	PoolSize int

	// Timeout bounds one tile round trip.
	Timeout time.Duration

	// ClassesURL optionally points at an HTTP endpoint returning the class
	// table as {"<id>": "<name>"}.
	ClassesURL string
}

type remoteHeader struct {
	Confidence float64 `json:"confidence"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

type remoteError struct {
	Error string `json:"error"`
}

// RemoteDetector runs inference on a model server over websocket.
//
// Each Detect call sends a JSON header frame followed by the tile as a PNG
// binary frame, then reads a single JSON text frame holding the detections.
// Connections are dialed lazily and reused; a connection that fails mid-call
// is closed and not returned to the pool.
type RemoteDetector struct {
	opts   RemoteOptions
	dialer *websocket.Dialer

	slots chan struct{}
	idle  chan *websocket.Conn

	mu      sync.Mutex
	classes map[int]string
	closed  bool
}

// NewRemoteDetector creates a detector for the server at opts.URL. No
// connection is made until the first Detect.
func NewRemoteDetector(opts RemoteOptions) (*RemoteDetector, error) {
	if opts.URL == "" {
		return nil, errors.New("remote detector URL is required")
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &RemoteDetector{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		slots: make(chan struct{}, opts.PoolSize),
		idle:  make(chan *websocket.Conn, opts.PoolSize),
	}, nil
}

// LoadClasses fetches the class table from ClassesURL. It is a no-op when
// no URL is configured.
func (r *RemoteDetector) LoadClasses(ctx context.Context) error {
	if r.opts.ClassesURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.ClassesURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build classes request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch classes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch classes: status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode classes: %w", err)
	}

	classes := make(map[int]string, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid class id %q: %w", k, err)
		}
		classes[id] = v
	}

	r.mu.Lock()
	r.classes = classes
	r.mu.Unlock()
	return nil
}

// Classes returns the table loaded by LoadClasses, or nil.
func (r *RemoteDetector) Classes() map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.classes == nil {
		return nil
	}
	out := make(map[int]string, len(r.classes))
	for k, v := range r.classes {
		out[k] = v
	}
	return out
}

// Detect sends one tile to the model server.
func (r *RemoteDetector) Detect(ctx context.Context, tile *image.NRGBA, confidence float64) ([]RawDetection, error) {
	if tile == nil {
		return nil, errors.New("no tile pixels")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, tile, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode tile: %w", err)
	}
	b := tile.Bounds()
	header := remoteHeader{Confidence: confidence, Width: b.Dx(), Height: b.Dy()}

	conn, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}

	dets, err := r.roundTrip(ctx, conn, header, buf.Bytes())
	r.release(conn, err == nil && ctx.Err() == nil)
	if err != nil {
		return nil, err
	}
	return dets, nil
}

func (r *RemoteDetector) roundTrip(ctx context.Context, conn *websocket.Conn, header remoteHeader, png []byte) ([]RawDetection, error) {
	deadline := time.Now().Add(r.opts.Timeout)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// ctx deadlines are enforced by closing the connection
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(header); err != nil {
		return nil, r.wrap(ctx, "write header", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, png); err != nil {
		return nil, r.wrap(ctx, "write tile", err)
	}

	msgType, message, err := conn.ReadMessage()
	if err != nil {
		return nil, r.wrap(ctx, "read reply", err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected reply message type %d", msgType)
	}

	message = bytes.TrimSpace(message)
	if len(message) > 0 && message[0] == '{' {
		var e remoteError
		if err := json.Unmarshal(message, &e); err == nil && e.Error != "" {
			return nil, fmt.Errorf("model server error: %s", e.Error)
		}
		return nil, errors.New("unexpected reply object")
	}

	var dets []RawDetection
	if err := json.Unmarshal(message, &dets); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}
	return dets, nil
}

func (r *RemoteDetector) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// acquire takes a pool slot and returns an idle or freshly dialed connection.
func (r *RemoteDetector) acquire(ctx context.Context) (*websocket.Conn, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		<-r.slots
		return nil, ErrDetectorClosed
	}

	select {
	case conn := <-r.idle:
		return conn, nil
	default:
	}

	conn, _, err := r.dialer.DialContext(ctx, r.opts.URL, nil)
	if err != nil {
		<-r.slots
		return nil, fmt.Errorf("failed to connect to %s: %w", r.opts.URL, err)
	}
	return conn, nil
}

// release returns a healthy connection to the pool and frees the slot.
func (r *RemoteDetector) release(conn *websocket.Conn, healthy bool) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()

	if healthy && !closed {
		select {
		case r.idle <- conn:
		default:
			conn.Close()
		}
	} else {
		conn.Close()
	}
	<-r.slots
}

// Close closes idle connections. Calls in flight finish and then close
// their own connection.
func (r *RemoteDetector) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	for {
		select {
		case conn := <-r.idle:
			conn.Close()
		default:
			return nil
		}
	}
}
