package controlplane

import (
	"context"
	"fmt"
	"sort"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/sirupsen/logrus"

	"github.com/ring-sim/ring-sim/sim"
)

type release struct {
	at    int64 // ticks
	id    sim.BearerID
	slice sim.SliceID
}

// Replay feeds a generated bearer sequence to a running controller in wall
// clock time, compressed by speedup. Arrivals follow ArrivalTime; admitted
// bearers are released HoldingTime later unless that falls past horizon.
// Releases are issued before arrivals due at the same tick.
func Replay(ctx context.Context, c *Controller, clk clock.Clock, bearers []*sim.BearerInfo, horizon int64, speedup float64) (*sim.Metrics, error) {
	if speedup <= 0 {
		return nil, fmt.Errorf("speedup must be positive, got %f", speedup)
	}
	m := sim.NewMetrics()
	start := clk.Now()
	var pending []release
	next := 0

	for next < len(bearers) || len(pending) > 0 {
		var at int64
		releasing := len(pending) > 0 && (next == len(bearers) || pending[0].at <= bearers[next].ArrivalTime)
		if releasing {
			at = pending[0].at
		} else {
			at = bearers[next].ArrivalTime
		}
		if at > horizon {
			break
		}

		deadline := start.Add(time.Duration(float64(at) / speedup * float64(time.Microsecond)))
		if wait := deadline.Sub(clk.Now()); wait > 0 {
			select {
			case <-clk.After(wait):
			case <-ctx.Done():
				return m, ctx.Err()
			}
		}

		if releasing {
			r := pending[0]
			pending = pending[1:]
			ok, err := c.Release(ctx, r.id)
			if err != nil {
				return m, err
			}
			if ok {
				m.RecordRelease(r.slice)
			}
			continue
		}

		info := bearers[next]
		next++
		d, err := c.Request(ctx, info)
		if err != nil {
			return m, err
		}
		m.RecordDecision(info.Slice, info.GBR, d)
		logrus.Debugf("bearer %d slice %d: accepted=%v paths=%s/%s", info.ID, info.Slice, d.Accepted, d.Paths[sim.InterfaceA], d.Paths[sim.InterfaceB])
		if d.Accepted && info.HoldingTime > 0 {
			r := release{at: at + info.HoldingTime, id: info.ID, slice: info.Slice}
			i := sort.Search(len(pending), func(i int) bool { return pending[i].at > r.at })
			pending = append(pending, release{})
			copy(pending[i+1:], pending[i:])
			pending[i] = r
		}
	}
	m.SimEndedTime = min(int64(float64(clk.Since(start)/time.Microsecond)*speedup), horizon)
	return m, nil
}
