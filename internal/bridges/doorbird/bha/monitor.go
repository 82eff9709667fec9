package bha

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const pathMonitor = "/bha-api/monitor.cgi"

// Event kinds the monitor subscribes to.
const (
	EventDoorbell     = "doorbell"
	EventMotionSensor = "motionsensor"
)

// MonitoredEvents lists the event kinds requested from the device.
var MonitoredEvents = []string{EventDoorbell, EventMotionSensor}

// MonitorHandler receives monitor callbacks. Both methods are called on
// the monitor goroutine, must not block for long and must not call
// StopMonitoring.
type MonitorHandler interface {
	// HandleEvent is called for each triggered event, e.g. "doorbell".
	HandleEvent(event string)

	// HandleError is called once when the stream fails. The monitor has
	// stopped by the time it is called.
	HandleError(message string)
}

type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartMonitoring opens the event stream and delivers events to handler
// until StopMonitoring is called or the stream fails.
//
// The stream is opened synchronously so connection and HTTP failures are
// returned here. ctx bounds only the connection attempt.
func (c *Client) StartMonitoring(ctx context.Context, handler MonitorHandler) error {
	if handler == nil {
		return errors.New("bha: monitor handler is required")
	}

	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()

	if c.monitor != nil {
		select {
		case <-c.monitor.done:
		default:
			return ErrAlreadyMonitoring
		}
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := c.newRequest(streamCtx, pathMonitor, url.Values{"ring": {strings.Join(MonitoredEvents, ",")}})
	if err != nil {
		cancel()
		return err
	}

	// Abort the connection attempt if the caller gives up.
	stopWatch := context.AfterFunc(ctx, cancel)
	resp, err := c.streamClient.Do(req)
	stopWatch()
	if err != nil {
		cancel()
		return fmt.Errorf("bha: %s: %w", pathMonitor, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close() //nolint:errcheck // status already decided the outcome
		cancel()
		return &HTTPError{Path: pathMonitor, StatusCode: resp.StatusCode}
	}

	m := &monitor{cancel: cancel, done: make(chan struct{})}
	c.monitor = m

	go m.run(streamCtx, resp.Body, handler)
	return nil
}

// StopMonitoring closes the stream and waits for the monitor goroutine to
// exit. No handler method is called after it returns. Safe to call when
// no monitor is running.
func (c *Client) StopMonitoring() error {
	c.monitorMu.Lock()
	m := c.monitor
	c.monitor = nil
	c.monitorMu.Unlock()

	if m == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}

// IsMonitoring reports whether a monitor goroutine is running.
func (c *Client) IsMonitoring() bool {
	c.monitorMu.Lock()
	defer c.monitorMu.Unlock()
	if c.monitor == nil {
		return false
	}
	select {
	case <-c.monitor.done:
		return false
	default:
		return true
	}
}

func (m *monitor) run(ctx context.Context, body io.ReadCloser, handler MonitorHandler) {
	defer close(m.done)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if event, ok := parseMonitorLine(scanner.Text()); ok {
			handler.HandleEvent(event)
		}
	}

	if ctx.Err() != nil {
		return // stopped
	}
	if err := scanner.Err(); err != nil {
		handler.HandleError(fmt.Sprintf("monitor stream failed: %v", err))
		return
	}
	handler.HandleError("monitor stream closed by device")
}

// parseMonitorLine extracts a triggered event from a "doorbell:H" line.
// Idle states ("doorbell:L"), multipart boundaries and headers are ignored.
func parseMonitorLine(line string) (string, bool) {
	name, state, found := strings.Cut(strings.TrimSpace(line), ":")
	if !found || state != "H" {
		return "", false
	}
	for _, event := range MonitoredEvents {
		if name == event {
			return name, true
		}
	}
	return "", false
}
