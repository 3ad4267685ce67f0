// Package ratelimit throttles calls to the embedding service and local search loops.
//
// Limiter gives explicit acquire/release semantics around each external call and
// guarantees that no more than Calls calls start within any window of length Period:
//
//	lim := ratelimit.New(cfg.OpenAIRateLimit, cfg.OpenAIRatePeriod)
//	defer lim.Stop()
//
//	err := lim.Do(ctx, func() error {
//	    return callService(ctx)
//	})
//
// Throttle paces in-process iteration over cached embeddings by sleeping once every
// N iterations:
//
//	th := ratelimit.NewThrottle(cfg.LocalRateLimit, cfg.LocalRatePeriod, nil)
//	for i := range embeddings {
//	    if err := th.Tick(ctx, i); err != nil {
//	        return err
//	    }
//	}
package ratelimit
