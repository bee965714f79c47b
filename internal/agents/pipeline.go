// Package agents implements the three-stage summarization pipeline.
//
// The Analyst infers speakers and topic blocks, the Writer summarizes each
// block (concurrently, bounded), and the Editor synthesizes the final
// summary. Model output is untrusted at every stage: payloads pass through
// recovery parsing and structural validation, and any malformed output is an
// agent output error that aborts the run. Only a fully synthesized
// FinalSummary ever reaches persistence.
package agents

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"recap/internal/llm"
	"recap/internal/logging"
	"recap/internal/transcript"
)

// Pipeline wires the three stages together.
type Pipeline struct {
	analyst     *Analyst
	writer      *Writer
	editor      *Editor
	quick       *QuickAgent
	insights    *InsightsAgent
	concurrency int
	logger      *slog.Logger
}

// Config tunes pipeline construction.
type Config struct {
	WriterConcurrency int
	MinTopicBlocks    int
	MaxTopicBlocks    int
}

// NewPipeline constructs the pipeline around one shared LLM client.
func NewPipeline(client *llm.Client, cfg Config, logger *slog.Logger) *Pipeline {
	concurrency := cfg.WriterConcurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Pipeline{
		analyst:     NewAnalyst(client, cfg.MinTopicBlocks, cfg.MaxTopicBlocks, logger),
		writer:      NewWriter(client, logger),
		editor:      NewEditor(client, logger),
		quick:       NewQuickAgent(client, logger),
		insights:    NewInsightsAgent(client, logger),
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// RunDeep executes Analyst, Writer, and Editor in order and returns the
// synthesized final summary. Any stage failure aborts the remaining stages.
func (p *Pipeline) RunDeep(ctx context.Context, tr *transcript.Transcript) (*FinalSummary, error) {
	analysis, err := p.analyst.Run(ctx, tr)
	if err != nil {
		return nil, err
	}

	summaries, err := p.writeBlocks(ctx, analysis, tr)
	if err != nil {
		return nil, err
	}

	return p.editor.Run(ctx, summaries, analysis.Speakers)
}

// RunQuick produces the quick-level summary in a single stage.
func (p *Pipeline) RunQuick(ctx context.Context, tr *transcript.Transcript) (*QuickSummary, error) {
	return p.quick.Run(ctx, tr)
}

// RunInsights produces the insights-level summary in a single stage.
func (p *Pipeline) RunInsights(ctx context.Context, tr *transcript.Transcript) (*InsightsSummary, error) {
	return p.insights.Run(ctx, tr)
}

// writeBlocks runs the Writer over every topic block with bounded
// concurrency. The first failure cancels the remaining calls; results keep
// block order regardless of completion order.
func (p *Pipeline) writeBlocks(ctx context.Context, analysis *AnalysisResult, tr *transcript.Transcript) ([]BlockSummary, error) {
	blocks := analysis.TopicBlocks
	results := make([]BlockSummary, len(blocks))
	errs := make([]error, len(blocks))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i, block := range blocks {
		wg.Add(1)
		go func(i int, block TopicBlock) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				errs[i] = runCtx.Err()
				return
			}
			defer func() { <-sem }()

			summary, err := p.writer.Run(runCtx, block, tr, analysis.Speakers)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = summary
		}(i, block)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !isCancellation(ctx, err) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// isCancellation reports whether err is only the fallout of another block's
// failure cancelling the run, rather than the root cause itself.
func isCancellation(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	return errors.Is(err, context.Canceled)
}
