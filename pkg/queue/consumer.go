package queue

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

const maxMessageSize = 1 << 20

// Stats counts what a Consumer did with its input
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Malformed int64 `json:"malformed"`
	Findings  int64 `json:"findings"`
}

// Consumer reads JSON-lines scan requests and processes them in parallel
type Consumer struct {
	Processor      *Processor
	Workers        int
	DefaultRegion  string
	DefaultProject string
	Logger         hclog.Logger
	// OnResult is called after every processed request, from worker goroutines
	OnResult func(ScanResult, error)
}

// Run consumes r until EOF or cancellation. Malformed lines and failed scans
// are logged and counted; acknowledging or redelivering them is up to the queue.
func (c *Consumer) Run(ctx context.Context, r io.Reader) (Stats, error) {
	log := c.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	var processed, failed, malformed, findings atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	line := 0
	for scanner.Scan() {
		line++
		if gctx.Err() != nil {
			break
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		req, err := DecodeScanRequest(raw, c.DefaultRegion, c.DefaultProject)
		if err != nil {
			malformed.Add(1)
			c.Processor.Metrics.RecordScan("malformed")
			log.Warn("skipping malformed message", "line", line, "error", err)
			continue
		}

		g.Go(func() error {
			res, err := c.Processor.Process(gctx, req)
			findings.Add(int64(res.Stored))
			if err != nil {
				failed.Add(1)
				log.Error("scan failed", "job_id", req.JobID, "service", req.ServiceName, "error", err)
			} else {
				processed.Add(1)
			}
			if c.OnResult != nil {
				c.OnResult(res, err)
			}
			return nil
		})
	}
	readErr := scanner.Err()
	_ = g.Wait()

	stats := Stats{
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Malformed: malformed.Load(),
		Findings:  findings.Load(),
	}
	if readErr != nil {
		return stats, readErr
	}
	return stats, ctx.Err()
}
