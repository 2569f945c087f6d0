package metrics

import (
	"context"
	"time"

	"github.com/hrygo/overflew/plugin/ai"
)

type instrumented struct {
	next         ai.CompletionService
	aggregator   *Aggregator
	defaultModel string
}

// Instrument wraps a completion service so every call is recorded in agg.
// Requests without a model override are recorded under defaultModel.
func Instrument(next ai.CompletionService, agg *Aggregator, defaultModel string) ai.CompletionService {
	return &instrumented{next: next, aggregator: agg, defaultModel: defaultModel}
}

func (i *instrumented) Complete(ctx context.Context, req ai.CompletionRequest) string {
	start := time.Now()
	text := i.next.Complete(ctx, req)

	model := req.Model
	if model == "" {
		model = i.defaultModel
	}
	i.aggregator.Record(model, time.Since(start), !ai.IsFallback(text))
	return text
}
