package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/logstream/aggregator/internal/config"
	"github.com/logstream/aggregator/pkg/models"
)

const (
	maxRetries = 5
	retryDelay = time.Second
)

func main() {
	log.Println("Starting publisher simulator...")

	cfg := config.Load()

	uniqueCount := int(float64(cfg.TotalEvents) / (1 + cfg.DuplicationRate))
	duplicateCount := cfg.TotalEvents - uniqueCount

	log.Printf("Target: %d events total (%d unique, %d duplicates)",
		cfg.TotalEvents, uniqueCount, duplicateCount)

	events := buildEventStream(uniqueCount, duplicateCount)

	if !waitForAggregator(cfg.AggregatorURL) {
		log.Fatal("Aggregator did not become ready, exiting")
	}

	start := time.Now()
	sent := sendBatches(cfg, events)
	elapsed := time.Since(start)

	log.Println("----------------------------------------")
	log.Println("FINAL SIMULATION RESULTS:")
	log.Printf("Total events sent: %d", sent)
	log.Printf("Expected unique events: %d", uniqueCount)
	log.Printf("Expected duplicates dropped: %d", duplicateCount)
	log.Printf("Time taken: %s", elapsed.Round(10*time.Millisecond))
	log.Println("----------------------------------------")
}

// buildEventStream generates the unique events, mixes in duplicate
// deliveries of randomly chosen ones, and shuffles the result to
// simulate at-least-once redelivery.
func buildEventStream(uniqueCount, duplicateCount int) []models.Event {
	unique := make([]models.Event, 0, uniqueCount)
	for i := 0; i < uniqueCount; i++ {
		unique = append(unique, generateEvent())
	}

	events := make([]models.Event, 0, uniqueCount+duplicateCount)
	events = append(events, unique...)
	for i := 0; i < duplicateCount; i++ {
		events = append(events, unique[rand.Intn(len(unique))])
	}

	rand.Shuffle(len(events), func(i, j int) {
		events[i], events[j] = events[j], events[i]
	})

	return events
}

func generateEvent() models.Event {
	return models.Event{
		Topic:     "test.topic.log",
		EventID:   uuid.New().String(),
		Source:    "sim-pub",
		Timestamp: time.Now().UTC(),
		Payload: map[string]interface{}{
			"data": fmt.Sprintf("Log message at %s", time.Now().Format(time.RFC3339Nano)),
		},
	}
}

// sendBatches posts the events in batches, retrying when the
// aggregator sheds load with a 503.
func sendBatches(cfg *config.Config, events []models.Event) int {
	client := &http.Client{Timeout: 5 * time.Second}
	publishURL := cfg.AggregatorURL + "/publish"

	sent := 0
	batchNum := 0
	for i := 0; i < len(events); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[i:end]
		batchNum++

		if !sendBatch(client, publishURL, batch, batchNum) {
			log.Printf("Batch %d failed after %d retries, stopping simulation", batchNum, maxRetries)
			break
		}
		sent += len(batch)

		time.Sleep(10 * time.Millisecond)
	}

	return sent
}

func sendBatch(client *http.Client, url string, batch []models.Event, batchNum int) bool {
	body, err := json.Marshal(models.EventBatch{Events: batch})
	if err != nil {
		log.Printf("Batch %d: failed to marshal: %v", batchNum, err)
		return false
	}

	for retries := 0; retries < maxRetries; retries++ {
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("Batch %d: connection error, retrying in %s", batchNum, retryDelay)
			time.Sleep(retryDelay)
			continue
		}
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusAccepted:
			log.Printf("Batch %d: ACCEPTED, count: %d", batchNum, len(batch))
			return true
		case http.StatusServiceUnavailable:
			log.Printf("Batch %d: queue full (503), retrying in %s", batchNum, retryDelay)
			time.Sleep(retryDelay)
		default:
			log.Printf("Batch %d: failed with status %d", batchNum, resp.StatusCode)
			return false
		}
	}

	return false
}

// waitForAggregator polls /stats until the aggregator responds.
func waitForAggregator(baseURL string) bool {
	statsURL := baseURL + "/stats"
	client := &http.Client{Timeout: time.Second}

	log.Printf("Waiting for aggregator at %s...", statsURL)
	for retries := 0; retries < maxRetries*2; retries++ {
		resp, err := client.Get(statsURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				log.Println("Aggregator is ready")
				return true
			}
		}
		time.Sleep(2 * retryDelay)
	}

	return false
}
