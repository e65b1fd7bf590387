package metrics

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/segment"
)

// extractor implements the Extractor interface.
type extractor struct {
	config Config
	logger logger.Logger
}

// New creates an Extractor.
//
// Parameters:
//   - cfg: Extractor configuration (zero values select defaults)
//   - log: Logger receiving extraction diagnostics
//
// Returns a configured Extractor.
func New(cfg Config, log logger.Logger) Extractor {
	if cfg.Pricing == (Pricing{}) {
		cfg.Pricing = DefaultPricing
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if log == nil {
		log = logger.Noop()
	}

	return &extractor{
		config: cfg,
		logger: log,
	}
}

// Extract implements Extractor.Extract.
func (e *extractor) Extract(ctx context.Context, seg *segment.Segment, fallbackTestType string) (rec *Record, err error) {
	if seg == nil {
		return nil, e.fail(e.logger, "", ErrNilSegment)
	}

	taskID := seg.TaskID.String()
	log := e.logger.With("task", taskID)

	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, e.fail(log, taskID, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := seg.Validate(); err != nil {
		return nil, e.fail(log, taskID, err)
	}

	var (
		hasMCP       bool
		apiCalls     int
		interactions int
		tokens       tokenTotals
		model        string
	)

	// Each sub-computation writes only its own result.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(stage(gctx, "mcp_detection", func() {
		hasMCP = detectMCP(seg)
	}))
	g.Go(stage(gctx, "api_calls", func() {
		apiCalls = countAPICalls(seg, log)
	}))
	g.Go(stage(gctx, "interactions", func() {
		interactions = countInteractions(seg, log)
	}))
	g.Go(stage(gctx, "tokens", func() {
		tokens = sumTokens(seg, e.config.Pricing, log)
	}))
	g.Go(stage(gctx, "model", func() {
		model = identifyModel(seg, log)
	}))

	if err := g.Wait(); err != nil {
		return nil, e.fail(log, taskID, err)
	}

	mode := fallbackTestType
	if seg.TestType != "" {
		mode = seg.TestType
	}
	if hasMCP {
		mode = ModeMCP
	}

	return &Record{
		TaskID:       taskID,
		DirectoryID:  seg.DirectoryID.String(),
		Mode:         mode,
		Model:        model,
		MCPServer:    MCPServer,
		MCPClient:    MCPClient,
		StartTime:    seg.StartTime,
		EndTime:      seg.EndTime,
		Duration:     seg.Duration(),
		APICalls:     max(apiCalls, 0),
		Interactions: interactions,
		TokensIn:     tokens.TokensIn,
		TokensOut:    tokens.TokensOut,
		TotalTokens:  tokens.TokensIn + tokens.TokensOut,
		Cost:         tokens.Cost,
		Success:      true,
		Notes:        "",
	}, nil
}

// ExtractAll implements Extractor.ExtractAll.
func (e *extractor) ExtractAll(ctx context.Context, segs []segment.Segment, fallbackTestType string) ([]Record, int, error) {
	results := make([]*Record, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i := range segs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Failures are logged by Extract and leave a nil slot.
			results[i], _ = e.Extract(gctx, &segs[i], fallbackTestType)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	records := make([]Record, 0, len(segs))
	skipped := 0
	for _, rec := range results {
		if rec == nil {
			skipped++
			continue
		}
		records = append(records, *rec)
	}

	e.logger.Info("batch extraction complete",
		"segments", len(segs),
		"records", len(records),
		"skipped", skipped)

	return records, skipped, nil
}

// fail logs an extraction failure and wraps it.
func (e *extractor) fail(log logger.Logger, taskID string, err error) error {
	extractErr := &ExtractError{TaskID: taskID, Err: err}
	if se, ok := err.(*stageError); ok {
		extractErr.Stage = se.stage
		extractErr.Err = se.err
	}

	log.Error("error calculating metrics", "error", extractErr.Err, "stage", extractErr.Stage)
	return extractErr
}

// stage wraps a sub-computation for errgroup, turning a panic or a
// cancelled context into an error.
func stage(ctx context.Context, name string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &stageError{stage: name, err: fmt.Errorf("panic: %v", r)}
			}
		}()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return &stageError{stage: name, err: ctxErr}
		}
		fn()
		return nil
	}
}
