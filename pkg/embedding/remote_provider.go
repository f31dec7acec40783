package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RemoteProvider talks to the external embedding generator over HTTP. Every
// call is wrapped in a circuit breaker so a dead generator fails fast
// instead of burning the request timeout over and over.
type RemoteProvider struct {
	baseURL string
	version string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[][]float32]
	healthy atomic.Bool
}

type embedRequest struct {
	Text            string    `json:"text"`
	NumericFeatures []float32 `json:"numeric_features,omitempty"`
	Version         string    `json:"version"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedBatchRequest struct {
	Items   []BatchInput `json:"items"`
	Version string       `json:"version"`
}

type embedBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func NewRemoteProvider(baseURL, version string, timeout time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	p := &RemoteProvider{
		baseURL: baseURL,
		version: version,
		client:  &http.Client{Timeout: timeout},
	}
	p.breaker = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:    "embedding-generator",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return p
}

func (p *RemoteProvider) Version() string {
	return p.version
}

func (p *RemoteProvider) Healthy() bool {
	return p.healthy.Load()
}

// CheckHealth probes GET /health and records the result. Safe to call from
// a background ticker.
func (p *RemoteProvider) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		p.healthy.Store(false)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.healthy.Store(false)
		return false
	}
	defer resp.Body.Close()

	ok := false
	if resp.StatusCode == http.StatusOK {
		var hr healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&hr); err == nil {
			ok = hr.Status == "ok" || hr.Status == "healthy"
		}
	}
	p.healthy.Store(ok)
	return ok
}

// RunHealthLoop re-probes the generator on the given interval until the
// context is cancelled.
func (p *RemoteProvider) RunHealthLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckHealth(ctx)
		}
	}
}

func (p *RemoteProvider) Embed(text string, numericFeatures []float32, version string) ([]float32, error) {
	result, err := p.breaker.Execute(func() ([][]float32, error) {
		body, err := json.Marshal(embedRequest{Text: text, NumericFeatures: numericFeatures, Version: version})
		if err != nil {
			return nil, err
		}
		raw, err := p.post("/embed", body)
		if err != nil {
			return nil, err
		}
		var er embedResponse
		if err := json.Unmarshal(raw, &er); err != nil {
			return nil, fmt.Errorf("malformed embed response: %w", err)
		}
		if len(er.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding from generator")
		}
		return [][]float32{er.Embedding}, nil
	})
	if err != nil {
		return nil, err
	}
	return NormalizeVector(result[0]), nil
}

func (p *RemoteProvider) EmbedBatch(inputs []BatchInput, version string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	result, err := p.breaker.Execute(func() ([][]float32, error) {
		body, err := json.Marshal(embedBatchRequest{Items: inputs, Version: version})
		if err != nil {
			return nil, err
		}
		raw, err := p.post("/embed_batch", body)
		if err != nil {
			return nil, err
		}
		var br embedBatchResponse
		if err := json.Unmarshal(raw, &br); err != nil {
			return nil, fmt.Errorf("malformed embed_batch response: %w", err)
		}
		if len(br.Embeddings) != len(inputs) {
			return nil, fmt.Errorf("generator returned %d embeddings for %d inputs", len(br.Embeddings), len(inputs))
		}
		return br.Embeddings, nil
	})
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i] = NormalizeVector(result[i])
	}
	return result, nil
}

func (p *RemoteProvider) post(path string, body []byte) ([]byte, error) {
	resp, err := p.client.Post(p.baseURL+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding generator error (status %d): %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
