package feeder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/reconnect"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// IsSlotOccupied reports whether the relay closed the connection with
// conflictCode, meaning another producer holds the slot. A zero
// conflictCode stands for the default.
func IsSlotOccupied(err error, conflictCode int) bool {
	if conflictCode == 0 {
		conflictCode = domain.CloseSlotConflict
	}
	var ce *websocket.CloseError
	return errors.As(err, &ce) && ce.Code == conflictCode
}

// Streamer pushes encoded frames from a Source to the relay's producer
// endpoint. It implements reconnect.Session.
type Streamer struct {
	cfg     config.StreamConfig
	source  Source
	encoder Encoder
	dialer  *websocket.Dialer

	conn *websocket.Conn
	sent atomic.Uint64
}

var _ reconnect.Session = (*Streamer)(nil)

// NewStreamer creates a streamer for cfg reading from source.
func NewStreamer(cfg config.StreamConfig, source Source) *Streamer {
	return &Streamer{
		cfg:    cfg,
		source: source,
		encoder: Encoder{
			MaxDimension: cfg.MaxDimension,
			Quality:      cfg.JPEGQuality,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.WriteWait,
			WriteBufferSize:  32 * 1024,
		},
	}
}

// SlotOccupied reports whether err is the relay's slot conflict close.
func (s *Streamer) SlotOccupied(err error) bool {
	return IsSlotOccupied(err, s.cfg.ConflictCloseCode)
}

// Sent returns the number of frames written since the streamer was created.
func (s *Streamer) Sent() uint64 {
	return s.sent.Load()
}

func (s *Streamer) Dial(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	s.conn = conn
	return nil
}

// Serve streams frames over the connection opened by Dial until the relay
// closes it, a write fails or ctx is cancelled.
func (s *Streamer) Serve(ctx context.Context) error {
	conn := s.conn
	if conn == nil {
		return errors.New("serve called before dial")
	}
	defer func() { s.conn = nil }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.readLoop(conn)
	})
	g.Go(func() error {
		return s.sendLoop(gctx, conn)
	})
	g.Go(func() error {
		<-gctx.Done()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readLoop discards anything the relay sends and returns once the
// connection is closed. Control frames are handled by the connection.
func (s *Streamer) readLoop(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (s *Streamer) sendLoop(ctx context.Context, conn *websocket.Conn) error {
	l := pkglog.Ctx(ctx)

	ticker := time.NewTicker(frameInterval(s.cfg.FPS))
	defer ticker.Stop()

	for {
		path, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrNoImages) {
				return reconnect.Permanent(err)
			}
			return err
		}

		frame, err := s.encoder.EncodeFile(path)
		if err != nil {
			l.Warn().Err(err).Str("path", path).Msg("skipping unreadable image")
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		n := s.sent.Add(1)
		l.Debug().Uint64(pkglog.FieldSeq, n).Int(pkglog.FieldFrameSize, len(frame)).Msg("frame sent")
	}
}

func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / fps)
}
