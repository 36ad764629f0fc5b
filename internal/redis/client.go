package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saviobatista/logbook-coverage/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// LogbookTTL bounds how long a parsed logbook is kept for re-runs
	LogbookTTL = 30 * 24 * time.Hour
	// ReportTTL bounds how long a cached report is served
	ReportTTL = 24 * time.Hour
)

// RedisClientInterface defines the Redis operations used by our client
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages Redis connections and operations
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a new Redis client with a custom RedisClientInterface (useful for testing)
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

func logbookKey(pilotID string) string {
	return fmt.Sprintf("logbook:%s", pilotID)
}

func settingsKey(pilotID string) string {
	return fmt.Sprintf("settings:%s", pilotID)
}

func reportKey(pilotID, scope string) string {
	return fmt.Sprintf("report:%s:%s", pilotID, scope)
}

// getBytes returns the raw value of key; found is false when it is absent
func (c *Client) getBytes(ctx context.Context, key, dataType string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s data: %w", dataType, err)
	}
	return data, true, nil
}

// getJSON retrieves a JSON value into target; found is false when it is absent
func (c *Client) getJSON(ctx context.Context, key string, target interface{}, dataType string) (bool, error) {
	data, found, err := c.getBytes(ctx, key, dataType)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s data: %w", dataType, err)
	}
	return true, nil
}

// StoreLogbook caches the parsed flights of a pilot
func (c *Client) StoreLogbook(ctx context.Context, pilotID string, flights []types.FlightRow) error {
	data, err := msgpack.Marshal(flights)
	if err != nil {
		return fmt.Errorf("failed to marshal logbook: %w", err)
	}
	return c.client.Set(ctx, logbookKey(pilotID), data, LogbookTTL).Err()
}

// GetLogbook returns the cached flights of a pilot, or nil when none are stored
func (c *Client) GetLogbook(ctx context.Context, pilotID string) ([]types.FlightRow, error) {
	data, found, err := c.getBytes(ctx, logbookKey(pilotID), "logbook")
	if err != nil || !found {
		return nil, err
	}

	var flights []types.FlightRow
	if err := msgpack.Unmarshal(data, &flights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal logbook data: %w", err)
	}
	if flights == nil {
		flights = []types.FlightRow{}
	}
	return flights, nil
}

// DeleteLogbook removes the cached flights of a pilot
func (c *Client) DeleteLogbook(ctx context.Context, pilotID string) error {
	return c.client.Del(ctx, logbookKey(pilotID)).Err()
}

// StoreSettings saves the preferences of a pilot
func (c *Client) StoreSettings(ctx context.Context, pilotID string, settings types.PilotSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return c.client.Set(ctx, settingsKey(pilotID), data, 0).Err()
}

// GetSettings returns the saved preferences of a pilot, or nil when none are saved
func (c *Client) GetSettings(ctx context.Context, pilotID string) (*types.PilotSettings, error) {
	var settings types.PilotSettings
	found, err := c.getJSON(ctx, settingsKey(pilotID), &settings, "settings")
	if err != nil || !found {
		return nil, err
	}
	return &settings, nil
}

// StoreReport caches the latest report of a pilot for its scope
func (c *Client) StoreReport(ctx context.Context, report *types.CoverageReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return c.client.Set(ctx, reportKey(report.PilotID, report.Scope), data, ReportTTL).Err()
}

// GetReport returns the cached report of a pilot for scope, or nil when none is cached
func (c *Client) GetReport(ctx context.Context, pilotID, scope string) (*types.CoverageReport, error) {
	var report types.CoverageReport
	found, err := c.getJSON(ctx, reportKey(pilotID, scope), &report, "report")
	if err != nil || !found {
		return nil, err
	}
	return &report, nil
}

// DeleteReports drops the cached reports of a pilot for every given scope
func (c *Client) DeleteReports(ctx context.Context, pilotID string, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	keys := make([]string, len(scopes))
	for i, scope := range scopes {
		keys[i] = reportKey(pilotID, scope)
	}
	return c.client.Del(ctx, keys...).Err()
}
