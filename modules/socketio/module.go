// Package socketio implements the `socketio` hook action, which streams group
// notifications and exported rows to a Socket.IO server.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultGroupEvent = "group"
	defaultRowsEvent  = "rows"
)

// Emitter is a connected client.
type Emitter interface {
	Emit(event string, data any)
	Close()
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// Connect opens a client. Defaults to a socket.io websocket client.
	Connect func(ctx context.Context, input *Input, timeout time.Duration) (Emitter, error)
}

// Input defines the arguments of a socketio block.
type Input struct {
	URL       string `hcl:"url"`
	Namespace string `hcl:"namespace,optional"`
	// Event overrides the event name. Defaults to "group" in before and
	// after hooks and "rows" in export hooks.
	Event              string `hcl:"event,optional"`
	Timeout            string `hcl:"timeout,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

// Notify is the handler for the 'socketio' action.
func (m *Module) Notify(ctx context.Context, input *Input, args *model.HookArgs) error {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)
	timeout := defaultTimeout
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("failed to parse timeout: %w", err)
		}
		timeout = d
	}

	connect := m.Connect
	if connect == nil {
		connect = Connect
	}
	client, err := connect(ctx, input, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	if args.Batches == nil {
		event := input.Event
		if event == "" {
			event = defaultGroupEvent
		}
		client.Emit(event, GroupPayload(args))
		logger.Debug("Group event emitted.", "event", event, "group", args.Group)
		return nil
	}

	event := input.Event
	if event == "" {
		event = defaultRowsEvent
	}
	pages, rows := 0, 0
	for page, err := range args.Batches {
		if err != nil {
			return err
		}
		client.Emit(event, RowsPayload(args, pages, page))
		pages++
		rows += len(page)
	}
	logger.Info("📦 Node streamed.", "node", args.Name, "event", event, "pages", pages, "rows", rows)
	return nil
}

// GroupPayload is the message sent in before and after hooks.
func GroupPayload(args *model.HookArgs) map[string]any {
	return map[string]any{
		"group": args.Group,
		"nodes": args.Nodes,
	}
}

// RowsPayload is the message sent for one page of an exported node.
func RowsPayload(args *model.HookArgs, page int, rows []model.Record) map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return map[string]any{
		"group":   args.Group,
		"node":    args.Name,
		"page":    page,
		"columns": args.Columns,
		"rows":    out,
	}
}

type client struct {
	io *socket.Socket
}

func (c *client) Emit(event string, data any) { c.io.Emit(event, data) }

func (c *client) Close() { c.io.Disconnect() }

// Connect opens a websocket client and waits until it is connected.
func Connect(ctx context.Context, input *Input, timeout time.Duration) (Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("url", input.URL)

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connected <- err
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &client{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("socketio", registry.Action(m.Notify))
}
