package licsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/warren/internal/license"
	"github.com/cuemby/warren/internal/metrics"
	"github.com/rs/zerolog"
)

// wireRecord is the JSON shape fetched from the remote accounting DB.
type wireRecord struct {
	Name           string `json:"name"`
	Server         string `json:"server"`
	Allowed        uint32 `json:"allowed"`
	AllowedPercent bool   `json:"allowed_percent"`
	LastConsumed   uint32 `json:"last_consumed"`
}

// Poller periodically fetches the remote accounting DB's license snapshot
// and reconciles it into a license.Pool.
type Poller struct {
	pool     *license.Pool
	url      string
	interval time.Duration
	client   *http.Client
	logger   zerolog.Logger

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewPoller builds a Poller fetching url every interval.
func NewPoller(pool *license.Pool, url string, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		pool:     pool,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Start begins the poll loop in a background goroutine.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.stopCh != nil {
		p.mu.Unlock()
		return
	}
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go p.run(stopCh)
}

// Stop halts the poll loop.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

func (p *Poller) run(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Str("url", p.url).Dur("interval", p.interval).Msg("license sync poller started")

	for {
		select {
		case <-ticker.C:
			if err := p.SyncOnce(context.Background()); err != nil {
				p.logger.Error().Err(err).Msg("license sync failed")
			}
		case <-stopCh:
			p.logger.Info().Msg("license sync poller stopped")
			return
		}
	}
}

// SyncOnce fetches the remote snapshot and reconciles it into the pool.
func (p *Poller) SyncOnce(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.LicenseSyncDuration)

	records, err := p.fetch(ctx)
	if err != nil {
		metrics.LicenseSyncFailuresTotal.Inc()
		return err
	}

	remote := make([]license.RemoteRecord, len(records))
	for i, r := range records {
		remote[i] = license.RemoteRecord{
			Name:           r.Name,
			Server:         r.Server,
			Allowed:        r.Allowed,
			AllowedPercent: r.AllowedPercent,
			LastConsumed:   r.LastConsumed,
		}
	}

	p.pool.SyncFromRemote(remote)
	return nil
}

func (p *Poller) fetch(ctx context.Context) ([]wireRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building license sync request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote license snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote license snapshot returned status %d", resp.StatusCode)
	}

	var records []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding remote license snapshot: %w", err)
	}
	return records, nil
}
