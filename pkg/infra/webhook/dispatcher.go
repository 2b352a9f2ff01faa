package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/types"
)

const (
	defaultQueueSize = 256
	defaultTimeout   = 5 * time.Second
	retryBackoff     = 500 * time.Millisecond
)

// Alert is the payload pushed to configured endpoints when a decision
// crosses the alert threshold.
type Alert struct {
	RequestID string          `json:"request_id"`
	TenantID  string          `json:"tenant_id"`
	ClientIP  string          `json:"client_ip"`
	Path      string          `json:"path"`
	Score     float64         `json:"score"`
	RiskLevel types.RiskLevel `json:"risk_level"`
	Action    types.Action    `json:"action"`
	Matches   []string        `json:"matches,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Config tunes delivery.
type Config struct {
	Endpoints  []string
	MaxRetries int
	Timeout    time.Duration
	QueueSize  int
}

// Dispatcher delivers alerts off the request path. Dispatch never blocks:
// when the queue is full the alert is dropped and counted, slow endpoints
// must not back up enforcement.
type Dispatcher struct {
	logger    *logrus.Logger
	cfg       Config
	client    *http.Client
	queue     chan Alert
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	dropped int64
}

func NewDispatcher(logger *logrus.Logger, cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	d := &Dispatcher{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan Alert, cfg.QueueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues an alert for delivery, dropping it if the queue is full.
func (d *Dispatcher) Dispatch(alert Alert) {
	select {
	case d.queue <- alert:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.WithField("request_id", alert.RequestID).Warn("Webhook queue full, alert dropped")
	}
}

// Dropped reports how many alerts were discarded because of backpressure.
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for alert := range d.queue {
		for _, endpoint := range d.cfg.Endpoints {
			d.deliver(endpoint, alert)
		}
	}
}

func (d *Dispatcher) deliver(endpoint string, alert Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		d.logger.WithError(err).Error("Failed to encode webhook alert")
		return
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
		if lastErr = d.send(endpoint, body); lastErr == nil {
			return
		}
	}

	d.logger.WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"request_id": alert.RequestID,
	}).WithError(lastErr).Error("Webhook delivery failed after retries")
}

func (d *Dispatcher) send(endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
