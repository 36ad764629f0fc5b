package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

const (
	StreamName = "LOGBOOK_IMPORTS"

	SubjectLogbookImported  = "logbook.imported"
	SubjectCoverageComputed = "coverage.computed"
)

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	// Create stream if it doesn't exist
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectLogbookImported, SubjectCoverageComputed},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishImport publishes a received logbook export
func (c *Client) PublishImport(imp *types.LogbookImport) error {
	return c.publish(SubjectLogbookImported, imp)
}

// PublishReport publishes a computed coverage report
func (c *Client) PublishReport(report *types.CoverageReport) error {
	return c.publish(SubjectCoverageComputed, report)
}

func (c *Client) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := c.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// SubscribeImports subscribes to logbook exports. durable names a consumer
// shared by competing workers; empty means an ephemeral one.
func (c *Client) SubscribeImports(durable string, handler func(*types.LogbookImport)) error {
	return c.subscribe(SubjectLogbookImported, durable, func(data []byte) {
		imp, err := DecodeImport(data)
		if err != nil {
			log.Printf("Error unmarshaling import: %v", err)
			return
		}
		handler(imp)
	})
}

// SubscribeReports subscribes to computed coverage reports
func (c *Client) SubscribeReports(durable string, handler func(*types.CoverageReport)) error {
	return c.subscribe(SubjectCoverageComputed, durable, func(data []byte) {
		report, err := DecodeReport(data)
		if err != nil {
			log.Printf("Error unmarshaling report: %v", err)
			return
		}
		handler(report)
	})
}

// subscribe binds a push consumer. A durable consumer is delivered to a
// queue group of the same name so several processes can bind it and each
// message reaches only one of them.
func (c *Client) subscribe(subject, durable string, handle func([]byte)) error {
	cb := func(msg *nats.Msg) {
		handle(msg.Data)
	}

	var err error
	if durable != "" {
		_, err = c.js.QueueSubscribe(subject, durable, cb, nats.Durable(durable))
	} else {
		_, err = c.js.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return nil
}

// DecodeImport parses a logbook.imported payload
func DecodeImport(data []byte) (*types.LogbookImport, error) {
	var imp types.LogbookImport
	if err := json.Unmarshal(data, &imp); err != nil {
		return nil, err
	}
	if imp.ID == "" {
		return nil, fmt.Errorf("import has no id")
	}
	return &imp, nil
}

// DecodeReport parses a coverage.computed payload
func DecodeReport(data []byte) (*types.CoverageReport, error) {
	var report types.CoverageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
