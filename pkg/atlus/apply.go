package atlus

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/resilience"
)

// DefaultBatchSize is the largest batch the service accepts.
const DefaultBatchSize = 10000

// SourceKeys returns the tags submitted for field, in priority order.
func SourceKeys(field string) ([]string, error) {
	switch field {
	case FieldAddress:
		return []string{"addr:street_address", "addr:full"}, nil
	case FieldPhone:
		return []string{"phone"}, nil
	default:
		return nil, eris.Errorf("atlus: unknown field %q", field)
	}
}

// ApplyOptions configures Apply.
type ApplyOptions struct {
	BatchSize int
	// Breaker stops submitting batches after repeated failures. Nil uses a
	// breaker tripping on three consecutive transient failures.
	Breaker *resilience.CircuitBreaker
}

// Stats counts what Apply did.
type Stats struct {
	Submitted      int
	Merged         int
	Rejected       int
	SkippedBatches int
}

type pending struct {
	feature *model.Feature
	req     Request
}

// Apply submits the field's source tag of every feature carrying one and
// merges the parsed tags back into the submitting feature. A merged feature
// loses its source tags. Values the service rejects are left untouched, as
// are the features of a batch that timed out or failed transiently. A
// malformed response aborts the run.
func Apply(ctx context.Context, c Client, features []*model.Feature, field string, opts ApplyOptions) (Stats, error) {
	var stats Stats
	keys, err := SourceKeys(field)
	if err != nil {
		return stats, err
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{ShouldTrip: resilience.IsTransient})
	}

	var work []pending
	for i, f := range features {
		for _, k := range keys {
			if v, ok := f.Tag(k); ok {
				id := f.ID()
				if id == "" {
					id = strconv.Itoa(i)
				}
				work = append(work, pending{feature: f, req: Request{ID: id, Value: v}})
				break
			}
		}
	}
	stats.Submitted = len(work)

	log := zap.L().With(zap.String("field", field))
	for start := 0; start < len(work); start += size {
		end := min(start+size, len(work))
		chunk := work[start:end]

		reqs := make([]Request, len(chunk))
		for i, p := range chunk {
			reqs[i] = p.req
		}

		results, err := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]Result, error) {
			return c.Batch(ctx, field, reqs)
		})
		switch {
		case err == nil:
		case errors.Is(err, model.ErrMalformedUpstreamResponse):
			return stats, err
		case errors.Is(err, resilience.ErrCircuitOpen):
			log.Warn("atlus: circuit open, skipping remaining batches",
				zap.Int("remaining", len(work)-start))
			stats.SkippedBatches += (len(work) - start + size - 1) / size
			return stats, nil
		case ctx.Err() != nil:
			return stats, eris.Wrap(ctx.Err(), "atlus: apply")
		case resilience.IsTransient(err):
			log.Warn("atlus: batch failed, leaving features untouched",
				zap.Int("batch_start", start), zap.Int("batch_size", len(chunk)), zap.Error(err))
			stats.SkippedBatches++
			continue
		default:
			return stats, err
		}

		if len(results) != len(chunk) {
			log.Warn("atlus: result count differs from batch size",
				zap.Int("batch_size", len(chunk)), zap.Int("results", len(results)))
		}
		for i := 0; i < len(chunk) && i < len(results); i++ {
			if merge(chunk[i], results[i], keys, log) {
				stats.Merged++
			} else {
				stats.Rejected++
			}
		}
	}
	log.Info("atlus: applied",
		zap.Int("submitted", stats.Submitted),
		zap.Int("merged", stats.Merged),
		zap.Int("rejected", stats.Rejected),
		zap.Int("skipped_batches", stats.SkippedBatches),
	)
	return stats, nil
}

func merge(p pending, res Result, keys []string, log *zap.Logger) bool {
	if msg := res.Err(); msg != "" {
		log.Debug("atlus: value rejected", zap.String("feature", p.req.ID), zap.String("error", msg))
		return false
	}
	if id, ok := res.ID(); ok && id != p.req.ID {
		log.Warn("atlus: result id does not match request",
			zap.String("want", p.req.ID), zap.String("got", id))
		return false
	}

	for _, k := range keys {
		p.feature.DeleteTag(k)
	}
	tags := make([]string, 0, len(res))
	for k := range res {
		switch k {
		case "@id", "@removed", "error":
			continue
		}
		tags = append(tags, k)
	}
	sort.Strings(tags)
	for _, k := range tags {
		switch v := res[k].(type) {
		case nil:
		case string:
			p.feature.SetTag(k, v)
		default:
			p.feature.Properties.Set(k, v)
		}
	}
	return true
}
