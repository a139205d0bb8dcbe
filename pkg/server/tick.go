package server

import (
	"log"
	"time"

	"github.com/adamdray/gaia-mud/pkg/eval"
)

// StartTicker launches the periodic tick driver. Each sweep enumerates
// cached objects whose own attribute map contains on_tick — inherited
// on_tick does not auto-schedule, keeping tick cost proportional to
// registered objects.
func (gm *Game) StartTicker() {
	period := gm.Conf.TickPeriod()
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gm.RunTick()
			case <-gm.Shutdown:
				return
			}
		}
	}()
	log.Printf("tick: scheduler running every %s", period)
}

// RunTick performs one sweep. Each invocation runs under a fresh context
// with its own time budget; failures are logged and do not abort the tick.
func (gm *Game) RunTick() {
	start := time.Now()
	for _, id := range gm.Cache.CachedIDs() {
		obj, err := gm.Cache.Get(id)
		if err != nil {
			continue
		}
		src, ok := obj.GetOwn("on_tick")
		if !ok {
			continue
		}
		if _, isStr := src.(string); !isStr {
			continue
		}

		inv := gm.NewInvocation()
		ctx := eval.NewContext(gm, gm.Funcs, id, id, inv)
		if _, err := ctx.InvokeAttr(id, "on_tick", nil); err != nil {
			log.Printf("tick: %s on_tick failed: %v", id, err)
			if f, isFailure := err.(*eval.Failure); isFailure && gm.Metrics != nil {
				gm.Metrics.EvalFailure(f.Kind.String())
			}
		}
	}
	if gm.Metrics != nil {
		gm.Metrics.TickObserved(time.Since(start))
	}
}
