package command

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultQueueSize bounds how many commands can wait before Push blocks.
// The MQTT client calls Push from its own delivery goroutine, so a full
// queue also stalls inbound traffic and keepalive handling until the
// consumer catches up; a long one-shot analysis backlog can cost the session.
const DefaultQueueSize = 32

// Log messages for ignored commands. Operators and tests match them verbatim.
const (
	MsgUnknownCommand     = "unknown command"
	MsgUnknownCameraState = "unknown camera state"
)

// Actions is the set of operations commands can trigger.
type Actions interface {
	Enable()
	Disable()
	UseOnce(ctx context.Context) error
	Enroll(ctx context.Context, name string) error
}

// Router dispatches parsed commands to Actions.
type Router struct {
	actions Actions
}

// NewRouter creates a Router.
func NewRouter(actions Actions) *Router {
	return &Router{actions: actions}
}

// Route parses and executes one message. Unknown commands are logged and
// return nil; errors come only from one-shot operations.
func (r *Router) Route(ctx context.Context, payload []byte) error {
	switch cmd := Parse(payload).(type) {
	case CameraCommand:
		return r.routeCamera(ctx, cmd)
	case IndexCommand:
		log.Info().Str("name", cmd.Name).Msg("Index command received")
		if err := r.actions.Enroll(ctx, cmd.Name); err != nil {
			return fmt.Errorf("enroll %q: %w", cmd.Name, err)
		}
		return nil
	case UnknownCommand:
		log.Warn().Str("payload", cmd.Raw).Str("reason", cmd.Reason).Msg(MsgUnknownCommand)
		return nil
	default:
		return nil
	}
}

func (r *Router) routeCamera(ctx context.Context, cmd CameraCommand) error {
	switch cmd.Action {
	case CameraEnable:
		log.Info().Msg("Camera enabled")
		r.actions.Enable()
	case CameraDisable:
		log.Info().Msg("Camera disabled")
		r.actions.Disable()
	case CameraUse:
		log.Info().Msg("One-shot capture requested")
		if err := r.actions.UseOnce(ctx); err != nil {
			return fmt.Errorf("one-shot capture: %w", err)
		}
	default:
		log.Warn().Str("value", cmd.Value).Msg(MsgUnknownCameraState)
	}
	return nil
}

// Queue feeds inbound messages to a single consumer so they are handled
// strictly in arrival order. Push blocks instead of dropping when full.
type Queue struct {
	router   *Router
	messages chan []byte
}

// NewQueue creates a queue in front of router. size <= 0 uses DefaultQueueSize.
func NewQueue(router *Router, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{router: router, messages: make(chan []byte, size)}
}

// Push enqueues a message, waiting for room. It returns false only when ctx
// ends first.
func (q *Queue) Push(ctx context.Context, payload []byte) bool {
	msg := append([]byte(nil), payload...)
	select {
	case q.messages <- msg:
		return true
	case <-ctx.Done():
		log.Warn().Str("payload", string(payload)).Msg("Command not queued, shutting down")
		return false
	}
}

// Run consumes messages until ctx is cancelled. A failing command is logged
// and the next one is processed.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.messages:
			if err := q.router.Route(ctx, msg); err != nil {
				log.Error().Err(err).Msg("Command failed")
			}
		}
	}
}
