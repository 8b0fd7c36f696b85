package verimail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verimail/internal/models"
)

// BatchSummary aggregates the verdicts of one batch.
type BatchSummary struct {
	Total      int   `json:"total"`
	Safe       int   `json:"safe"`
	Risky      int   `json:"risky"`
	Invalid    int   `json:"invalid"`
	Unknown    int   `json:"unknown"`
	Errors     int   `json:"errors"`
	DurationMs int64 `json:"duration_ms"`
}

// BatchResult maps each input address, verbatim, to its result.
type BatchResult struct {
	Results map[string]VerificationResult `json:"results"`
	Summary BatchSummary                  `json:"summary"`
}

// VerifyBatch runs VerifyBatch against the process-wide default Verifier.
func VerifyBatch(ctx context.Context, p BatchParams) BatchResult {
	return defaultVerifier.VerifyBatch(ctx, p)
}

// VerifyBatch fans the input list out over a bounded worker pool. Every
// input produces exactly one entry in Results, keyed by the original
// string; a panic inside one verification is confined to that entry.
func (v *Verifier) VerifyBatch(ctx context.Context, p BatchParams) BatchResult {
	start := time.Now()

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(p.EmailAddresses) {
		concurrency = len(p.EmailAddresses)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	results := make(map[string]VerificationResult, len(p.EmailAddresses))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for email := range jobs {
				result := v.verifyOne(ctx, p.Options, email)
				mu.Lock()
				results[email] = result
				mu.Unlock()
			}
		}()
	}

	for _, email := range p.EmailAddresses {
		jobs <- email
	}
	close(jobs)
	wg.Wait()

	summary := BatchSummary{DurationMs: time.Since(start).Milliseconds()}
	for _, r := range results {
		summary.Total++
		switch r.Reachability {
		case models.ReachabilitySafe:
			summary.Safe++
		case models.ReachabilityRisky:
			summary.Risky++
		case models.ReachabilityInvalid:
			summary.Invalid++
		default:
			summary.Unknown++
		}
		if r.Error != "" {
			summary.Errors++
		}
	}

	return BatchResult{Results: results, Summary: summary}
}

// verifyOne isolates a single verification so one bad input, or a panic
// anywhere in its pipeline, cannot take the rest of the batch down.
func (v *Verifier) verifyOne(ctx context.Context, opts Params, email string) (result VerificationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = VerificationResult{
				Email:        email,
				Reachability: models.ReachabilityUnknown,
				Error:        fmt.Sprintf("verification panicked: %v", rec),
			}
		}
	}()

	opts.EmailAddress = email
	result, err := v.Verify(ctx, opts)
	if err != nil {
		result = VerificationResult{
			Email:        email,
			Reachability: models.ReachabilityUnknown,
			Error:        err.Error(),
		}
	}
	return result
}
