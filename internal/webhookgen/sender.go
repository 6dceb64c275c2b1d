package webhookgen

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
)

const webhookPath = "/webhooks/session-completed"

// sign computes the hex HMAC-SHA256 signature of body.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// submitAll delivers payloads through a worker pool and tallies the
// outcomes. A configurable fraction of payloads is sent twice to
// exercise the duplicate path.
func submitAll(ctx context.Context, cfg *Config, payloads []payload, stats *Stats) {
	client := &http.Client{Timeout: cfg.Timeout}
	url := cfg.BaseURL + webhookPath

	var accepted, duplicate, rejected, failed, submitted int64

	jobs := make(chan payload, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if ctx.Err() != nil {
					return
				}
				outcome := deliver(ctx, client, url, cfg.Secret, p)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range payloads {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
			if cfg.DuplicateRate > 0 && chance(int(cfg.DuplicateRate*percentDivisor)) {
				select {
				case <-ctx.Done():
					return
				case jobs <- p:
				}
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Failed = int(atomic.LoadInt64(&failed))
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeFailed
)

// deliver sends one signed webhook and classifies the response.
func deliver(ctx context.Context, client *http.Client, url, secret string, p payload) outcome {
	body, err := json.Marshal(p)
	if err != nil {
		return outcomeFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return outcomeFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sign(secret, body))

	resp, err := client.Do(req)
	if err != nil {
		return outcomeFailed
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return outcomeAccepted
	case http.StatusConflict:
		return outcomeDuplicate
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}
