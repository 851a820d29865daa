package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/foodway/foodway-backend/api/responses"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/internal/workers"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
	"github.com/foodway/foodway-backend/pkg/enums"
	"github.com/foodway/foodway-backend/pkg/logger"
)

const (
	defaultSessionFrameRate = 5
	sessionFrameBurst       = 10
	sessionWriteTimeout     = 10 * time.Second

	clientFramePing = "ping"
	clientFrameDuty = "duty"
)

var (
	errSessionReplaced = errors.New("session replaced by a newer connection")
	errClientClosed    = errors.New("client closed the session")
)

type sessionBroker interface {
	Subscribe(workerID string, onDuty bool) *broadcast.Subscriber
	Unsubscribe(sub *broadcast.Subscriber)
	CompleteSnapshot(sub *broadcast.Subscriber, ids []string) []string
	Push(sub *broadcast.Subscriber, evtType enums.DispatchEventType, payload any) bool
}

type SessionParams struct {
	Broker      sessionBroker
	Assignments assignments.Service
	Workers     workers.Service
	Logger      *logger.Logger
	// FrameRate caps inbound client frames per second.
	FrameRate float64
}

type clientFrame struct {
	Type   string `json:"type"`
	OnDuty *bool  `json:"onDuty,omitempty"`
}

type snapshotPayload struct {
	OnDuty      bool                         `json:"onDuty"`
	Assignments []assignments.AssignmentView `json:"assignments"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WorkerSession upgrades to a WebSocket bound to the worker's broker subscriber. The first frame
// is an assignments.snapshot; live created/claimed/expired frames follow.
func WorkerSession(p SessionParams) http.HandlerFunc {
	frameRate := p.FrameRate
	if frameRate <= 0 {
		frameRate = defaultSessionFrameRate
	}
	return func(w http.ResponseWriter, r *http.Request) {
		logg := p.Logger
		worker, err := workerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		onDuty, err := p.Workers.IsOnDuty(r.Context(), worker)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "session.upgrade_failed")
			return
		}

		ctx := logg.WithWorkerID(r.Context(), worker)
		s := &workerSession{
			params:  p,
			logg:    logg,
			conn:    conn,
			worker:  worker,
			limiter: rate.NewLimiter(rate.Limit(frameRate), sessionFrameBurst),
		}
		s.run(ctx, onDuty)
	}
}

type workerSession struct {
	params  SessionParams
	logg    *logger.Logger
	conn    net.Conn
	worker  string
	sub     *broadcast.Subscriber
	limiter *rate.Limiter

	// writeMu serializes data frames with the pongs and close replies written by the reader.
	writeMu sync.Mutex
}

// lockedWriter lets control replies from wsutil share the connection with the write loop.
// wsutil emits each control frame with a single Write.
type lockedWriter struct {
	s *workerSession
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.s.writeMu.Lock()
	defer w.s.writeMu.Unlock()
	return w.s.conn.Write(p)
}

func (s *workerSession) run(ctx context.Context, onDuty bool) {
	s.sub = s.params.Broker.Subscribe(s.worker, onDuty)
	defer s.params.Broker.Unsubscribe(s.sub)
	s.logg.Info(s.logg.WithField(ctx, "on_duty", onDuty), "session.opened")

	s.snapshot(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx) })
	err := g.Wait()

	closeCtx := ctx
	if err != nil && !errors.Is(err, errClientClosed) {
		closeCtx = s.logg.WithField(ctx, "reason", err.Error())
	}
	s.logg.Info(closeCtx, "session.closed")
}

// snapshot reads the available list and reconciles it with retractions seen since the
// subscriber started recording. Must follow Subscribe or BeginSnapshot.
func (s *workerSession) snapshot(ctx context.Context) {
	onDuty := s.sub.OnDuty()
	rows, err := s.params.Assignments.ListAvailable(ctx, s.worker, onDuty)
	if err != nil {
		s.logg.Error(ctx, "session.snapshot_failed", err)
		rows = nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID.String())
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range s.params.Broker.CompleteSnapshot(s.sub, ids) {
		keep[id] = struct{}{}
	}
	views := make([]assignments.AssignmentView, 0, len(keep))
	for _, row := range rows {
		if _, ok := keep[row.ID.String()]; ok {
			views = append(views, assignments.ToView(row))
		}
	}
	if !s.params.Broker.Push(s.sub, enums.DispatchEventSnapshot, snapshotPayload{OnDuty: onDuty, Assignments: views}) {
		s.logg.Warn(ctx, "session.snapshot_dropped")
	}
}

func (s *workerSession) writeLoop(ctx context.Context) error {
	defer s.conn.Close()
	for {
		select {
		case <-ctx.Done():
			s.writeClose(ws.StatusNormalClosure, "")
			return nil
		case evt, ok := <-s.sub.C():
			if !ok {
				s.writeClose(ws.StatusPolicyViolation, errSessionReplaced.Error())
				return errSessionReplaced
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.logg.Error(ctx, "session.encode_failed", err)
				continue
			}
			if err := s.write(data); err != nil {
				return err
			}
			if evt.Type == enums.DispatchEventDutyChanged && cameOnDuty(evt) {
				s.sub.BeginSnapshot()
				s.snapshot(ctx)
			}
		}
	}
}

func (s *workerSession) readLoop(ctx context.Context) error {
	rw := struct {
		io.Reader
		io.Writer
	}{s.conn, lockedWriter{s: s}}
	for {
		data, op, err := wsutil.ReadClientData(rw)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) || errors.Is(err, io.EOF) {
				return errClientClosed
			}
			return err
		}
		if op != ws.OpText {
			continue
		}
		if !s.limiter.Allow() {
			s.logg.Warn(ctx, "session.frame_throttled")
			s.pushError(pkgerrors.CodeRateLimit, "slow down")
			continue
		}
		s.handleFrame(ctx, data)
	}
}

func (s *workerSession) handleFrame(ctx context.Context, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.pushError(pkgerrors.CodeValidation, "frame must be a JSON object")
		return
	}
	switch frame.Type {
	case clientFramePing:
		s.params.Broker.Push(s.sub, enums.DispatchEventPong, nil)
	case clientFrameDuty:
		if frame.OnDuty == nil {
			s.pushError(pkgerrors.CodeValidation, "onDuty is required")
			return
		}
		// the broker answers with duty.changed, which triggers the snapshot refresh
		if _, err := s.params.Workers.SetOnDuty(ctx, s.worker, *frame.OnDuty); err != nil {
			s.logg.Error(ctx, "session.duty_failed", err)
			code := pkgerrors.CodeInternal
			if typed := pkgerrors.As(err); typed != nil {
				code = typed.Code()
			}
			s.pushError(code, pkgerrors.MetadataFor(code).PublicMessage)
		}
	default:
		s.pushError(pkgerrors.CodeValidation, "unknown frame type")
	}
}

func (s *workerSession) pushError(code pkgerrors.Code, message string) {
	s.params.Broker.Push(s.sub, enums.DispatchEventError, errorPayload{Code: string(code), Message: message})
}

func (s *workerSession) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerText(s.conn, data)
}

func (s *workerSession) writeClose(code ws.StatusCode, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = wsutil.WriteServerMessage(s.conn, ws.OpClose, ws.NewCloseFrameBody(code, reason))
}

func cameOnDuty(evt *broadcast.Event) bool {
	var payload broadcast.DutyPayload
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		return false
	}
	return payload.OnDuty
}
