// Package interpret drives one AI-interpretation request through its stages:
// download the paper, upload it to the inference provider, and relay the
// streamed analysis, cleaning up the temporary artifact on every exit path.
package interpret

import (
	"context"
	"fmt"
	"log"
	"sync"

	"paperlens/internal/dashscope"
	"paperlens/internal/models"
)

// Request identifies the paper to interpret.
type Request struct {
	PDFURL     string
	PaperID    string
	PaperTitle string
}

// EventSink receives the ordered event feed for one request.
type EventSink interface {
	Send(models.StreamEvent) error
}

// PDFDownloader fetches a validated URL into scratch storage.
type PDFDownloader interface {
	Download(ctx context.Context, url string) (string, error)
	Remove(path string)
}

// AnalysisClient uploads an artifact and streams its analysis.
type AnalysisClient interface {
	UploadFile(ctx context.Context, path string) (string, error)
	StreamAnalysis(ctx context.Context, fileID string, sink dashscope.Sink) error
}

// Orchestrator owns the per-request lifecycle. It is stateless across
// requests and safe for concurrent use.
type Orchestrator struct {
	downloader PDFDownloader
	ai         AnalysisClient
}

func New(downloader PDFDownloader, ai AnalysisClient) *Orchestrator {
	return &Orchestrator{downloader: downloader, ai: ai}
}

// Run executes the interpretation request, emitting a stage event before each
// stage's work, then either a single terminal error event or the complete
// marker. The downloaded artifact is removed exactly once whether the request
// succeeds, fails, or is cancelled by client disconnect.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink EventSink) {
	var (
		artifact string
		cleanup  sync.Once
	)
	release := func() {
		cleanup.Do(func() {
			if artifact != "" {
				o.downloader.Remove(artifact)
			}
		})
	}
	defer release()

	fail := func(stage string, err error) {
		log.Printf("interpretation %s failed (paper %q): %v", stage, req.PaperID, err)
		_ = sink.Send(models.StreamEvent{Error: err.Error()})
	}

	if err := sink.Send(models.StreamEvent{Status: models.StageDownloading}); err != nil {
		return
	}
	path, err := o.downloader.Download(ctx, req.PDFURL)
	if err != nil {
		if ctx.Err() == nil {
			fail("download", fmt.Errorf("PDF download failed: %w", err))
		}
		return
	}
	artifact = path

	if ctx.Err() != nil {
		return
	}
	if err := sink.Send(models.StreamEvent{Status: models.StageUploading}); err != nil {
		return
	}
	fileID, err := o.ai.UploadFile(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			fail("upload", fmt.Errorf("failed to upload PDF: %w", err))
		}
		return
	}

	if ctx.Err() != nil {
		return
	}
	if err := sink.Send(models.StreamEvent{Status: models.StageAnalyzing}); err != nil {
		return
	}
	relay := &streamRelay{sink: sink}
	if err := o.ai.StreamAnalysis(ctx, fileID, relay); err != nil {
		if ctx.Err() == nil {
			fail("analysis", fmt.Errorf("failed to analyze paper: %w", err))
		}
		return
	}
	if relay.failed || ctx.Err() != nil {
		return
	}

	// Release before the terminal event so the artifact is gone by the time
	// the client observes completion.
	release()
	_ = sink.Send(models.StreamEvent{Status: models.StageComplete})
}

// streamRelay adapts the provider sink onto the outbound event feed.
type streamRelay struct {
	sink   EventSink
	failed bool
}

func (r *streamRelay) OnDelta(text string) error {
	return r.sink.Send(models.StreamEvent{Chunk: text})
}

func (r *streamRelay) OnStreamError(msg string) {
	r.failed = true
	_ = r.sink.Send(models.StreamEvent{Error: msg})
}
