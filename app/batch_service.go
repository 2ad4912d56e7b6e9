package app

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds parallel analyses so a large upload batch cannot
// exhaust memory on spreadsheet parsing.
const batchConcurrency = 4

// BatchService runs the universal analysis over a set of uploads and
// aggregates the outcomes. Per-file failures never abort the batch.
type BatchService struct {
	analysis *AnalysisService
}

// BatchFile is one upload inside a batch request.
type BatchFile struct {
	Filename string
	Content  []byte
}

// BatchItem is one file's outcome: either a report or an error string.
type BatchItem struct {
	Filename    string          `json:"filename"`
	Status      string          `json:"status"`
	DatasetType string          `json:"dataset_type,omitempty"`
	Error       string          `json:"error,omitempty"`
	Report      *AnalysisReport `json:"report,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	TotalFiles int         `json:"total_files"`
	Processed  int         `json:"processed"`
	Failed     int         `json:"failed"`
	Results    []BatchItem `json:"results"`
}

// NewBatchService creates a batch runner over the given analysis service.
func NewBatchService(analysis *AnalysisService) *BatchService {
	return &BatchService{analysis: analysis}
}

// Process analyzes every file with bounded concurrency. Results keep the
// input order regardless of completion order.
func (s *BatchService) Process(ctx context.Context, files []BatchFile, chemistry string, localMode bool) BatchSummary {
	results := make([]BatchItem, len(files))

	var mu sync.Mutex
	processed, failed := 0, 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			report, err := s.analysis.Analyze(gctx, AnalysisRequest{
				Content:   file.Content,
				Filename:  file.Filename,
				Chemistry: chemistry,
				LocalMode: localMode,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[Batch] %s failed: %v", file.Filename, err)
				results[i] = BatchItem{Filename: file.Filename, Status: "error", Error: err.Error()}
				failed++
				return nil
			}
			results[i] = BatchItem{
				Filename:    file.Filename,
				Status:      "success",
				DatasetType: report.DatasetType,
				Report:      report,
			}
			processed++
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()

	return BatchSummary{
		TotalFiles: len(files),
		Processed:  processed,
		Failed:     failed,
		Results:    results,
	}
}
