// Command loadgen fires synthetic transaction webhooks at a running service
// to exercise acceptance latency and idempotent ingestion. A configurable
// share of deliveries reuses an earlier transaction ID to simulate duplicate
// webhook deliveries.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/ravikanth/payflux/internal/config"
	"github.com/ravikanth/payflux/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type webhook struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

var currencies = []string{"USD", "EUR", "GBP", "KES", "JPY"}

func main() {
	var (
		target     = flag.String("target", "http://localhost:8080", "Base URL of the webhook service")
		count      = flag.Int("count", 200, "Number of webhook deliveries to send")
		workers    = flag.Int("workers", 8, "Number of concurrent senders")
		dupRatio   = flag.Float64("duplicate-ratio", 0.2, "Share of deliveries that reuse an earlier transaction ID")
		reqTimeout = flag.Duration("timeout", 2*time.Second, "Per-request timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging).With("component", "loadgen")

	client := &http.Client{Timeout: *reqTimeout}
	url := *target + "/v1/webhooks/transactions"

	var (
		mu        sync.Mutex
		sentIDs   []string
		latencies []time.Duration
		accepted  int
		failed    int
	)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for range jobs {
				payload := randomWebhook(rng)

				mu.Lock()
				if len(sentIDs) > 0 && rng.Float64() < *dupRatio {
					payload.TransactionID = sentIDs[rng.Intn(len(sentIDs))]
				} else {
					sentIDs = append(sentIDs, payload.TransactionID)
				}
				mu.Unlock()

				body, err := json.Marshal(payload)
				if err != nil {
					logger.Error("marshal payload", "error", err)
					continue
				}

				start := time.Now()
				resp, err := client.Post(url, "application/json", bytes.NewReader(body))
				elapsed := time.Since(start)
				if err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					logger.Warn("delivery failed", "error", err)
					continue
				}
				resp.Body.Close()

				mu.Lock()
				latencies = append(latencies, elapsed)
				if resp.StatusCode == http.StatusAccepted {
					accepted++
				} else {
					failed++
					logger.Warn("unexpected status", "status", resp.StatusCode)
				}
				mu.Unlock()
			}
		}(int64(w) + time.Now().UnixNano())
	}

	startedAt := time.Now()
	for i := 0; i < *count; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	logger.Info("load run complete",
		"deliveries", *count,
		"unique_ids", len(sentIDs),
		"accepted", accepted,
		"failed", failed,
		"duration", time.Since(startedAt).String(),
		"p50", percentile(latencies, 0.50).String(),
		"p95", percentile(latencies, 0.95).String(),
		"p99", percentile(latencies, 0.99).String(),
	)
}

func randomWebhook(rng *rand.Rand) webhook {
	amount := decimal.NewFromInt(rng.Int63n(99999) + 1).Div(decimal.NewFromInt(100))
	return webhook{
		TransactionID:      uuid.NewString(),
		SourceAccount:      fmt.Sprintf("ACC-%04d", rng.Intn(10000)),
		DestinationAccount: fmt.Sprintf("ACC-%04d", rng.Intn(10000)),
		Amount:             amount,
		Currency:           currencies[rng.Intn(len(currencies))],
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
