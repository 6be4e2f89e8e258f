package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// Message types exchanged with a landmark sidecar.
const (
	msgInit   = "init"
	msgReady  = "ready"
	msgDetect = "detect"
	msgResult = "result"
	msgError  = "error"
)

// remoteMessage is the JSON envelope of the sidecar protocol.
//
//	-> {"type":"init","options":{...}}
//	<- {"type":"ready"} | {"type":"error","message":"..."}
//	-> {"type":"detect","timestamp_ms":123,"frame":"<base64 jpeg>"}
//	<- {"type":"result","timestamp_ms":123,"landmarks":[[{"x":..,"y":..,"z":..}]]}
type remoteMessage struct {
	Type        string                `json:"type"`
	Options     *ModelOptions         `json:"options,omitempty"`
	TimestampMs int64                 `json:"timestamp_ms,omitempty"`
	Frame       []byte                `json:"frame,omitempty"`
	Landmarks   [][]landmark.Landmark `json:"landmarks,omitempty"`
	Message     string                `json:"message,omitempty"`
}

// RemoteModel drives a landmarker running in a sidecar process over a
// websocket, for models that have no native Go runtime.
type RemoteModel struct {
	url         string
	jpegQuality int

	conn   *websocket.Conn
	mu     sync.Mutex // One request/response exchange at a time
	closed atomic.Bool
}

// DialRemote connects to the sidecar at url and initializes the model.
func DialRemote(ctx context.Context, url string, opts ModelOptions) (*RemoteModel, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}

	m := &RemoteModel{url: url, jpegQuality: 85, conn: conn}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteJSON(remoteMessage{Type: msgInit, Options: &opts}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send init: %w", err)
	}

	var reply remoteMessage
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read init reply: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch reply.Type {
	case msgReady:
		return m, nil
	case msgError:
		conn.Close()
		return nil, errors.New(reply.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("unexpected init reply %q", reply.Type)
	}
}

// RemoteFactory returns a ModelFactory dialing url.
func RemoteFactory(url string) ModelFactory {
	return func(ctx context.Context, opts ModelOptions) (Model, error) {
		return DialRemote(ctx, url, opts)
	}
}

// DetectForVideo sends frame as JPEG and waits for the landmarks.
func (m *RemoteModel) DetectForVideo(frame image.Image, timestampMs int64) (Result, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: m.jpegQuality}); err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return Result{}, ErrClosed
	}

	req := remoteMessage{Type: msgDetect, TimestampMs: timestampMs, Frame: buf.Bytes()}
	if err := m.conn.WriteJSON(req); err != nil {
		return Result{}, fmt.Errorf("send frame: %w", err)
	}

	var reply remoteMessage
	if err := m.conn.ReadJSON(&reply); err != nil {
		return Result{}, fmt.Errorf("read result: %w", err)
	}

	switch reply.Type {
	case msgResult:
		res := Result{Landmarks: make([]landmark.Set, 0, len(reply.Landmarks))}
		for _, l := range reply.Landmarks {
			res.Landmarks = append(res.Landmarks, landmark.Set(l))
		}
		return res, nil
	case msgError:
		return Result{}, errors.New(reply.Message)
	default:
		return Result{}, fmt.Errorf("unexpected reply %q", reply.Type)
	}
}

// Close sends a close frame and drops the connection. It does not wait
// for an exchange in progress; closing the socket unblocks it.
func (m *RemoteModel) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return m.conn.Close()
}
