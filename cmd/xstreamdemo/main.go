// Command xstreamdemo runs a producer/consumer pipeline over xstream
// streams: producer streams fill chunks of a vector, consumer streams wait
// on the producers' events and reduce the chunks.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/xstream"
	"github.com/gogpu/xstream/device"
	_ "github.com/gogpu/xstream/device/halgpu"
)

func main() {
	var (
		strategy = flag.String("strategy", "signal", "dispatch strategy: sync, signal or stream")
		backend  = flag.String("backend", "", "device backend: hal or host (default: best available)")
		streams  = flag.Int("streams", 4, "number of producer/consumer stream pairs")
		regions  = flag.Int("regions", 8, "regions per producer stream")
		chunk    = flag.Int("chunk", 1<<16, "elements per region")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	xstream.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	st, err := xstream.ParseStrategy(*strategy)
	if err != nil {
		log.Fatal(err)
	}

	opts := []xstream.Option{xstream.WithStrategy(st)}
	if *backend != "" {
		opts = append(opts, xstream.WithBackendName(*backend))
	}
	rt, err := xstream.New(opts...)
	if err != nil {
		log.Fatalf("xstream: %v (status %d); backends: %v, hal: %v",
			err, xstream.StatusOf(err), device.Available(), hal.AvailableBackends())
	}
	defer rt.Close()

	start := time.Now()
	sum, err := run(rt, *streams, *regions, *chunk)
	if err != nil {
		log.Fatalf("pipeline: %v (status %d)", err, xstream.StatusOf(err))
	}

	n := int64(*streams) * int64(*regions) * int64(*chunk)
	want := n * (n - 1) / 2
	p := message.NewPrinter(language.English)
	p.Printf("backend=%s strategy=%s devices=%d elements=%d sum=%d ok=%v elapsed=%v\n",
		rt.Backend().Name(), rt.Strategy(), rt.DeviceCount(), n, sum, sum == want, time.Since(start))
	if sum != want {
		os.Exit(1)
	}
}

// run fills a vector with 0..n-1 on producer streams and sums it on
// consumer streams that wait on the producers' events.
func run(rt *xstream.Runtime, pairs, regions, chunk int) (int64, error) {
	data := make([]int64, pairs*regions*chunk)
	var total atomic.Int64

	fill := func(x *xstream.Exec) error {
		lo := x.Arg(0).(int)
		part := data[lo : lo+chunk]
		for i := range part {
			part[i] = int64(lo + i)
		}
		return nil
	}
	reduce := func(x *xstream.Exec) error {
		lo := x.Arg(0).(int)
		var s int64
		for _, v := range data[lo : lo+chunk] {
			s += v
		}
		total.Add(s)
		return nil
	}

	var cleanup []func() error
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			if err := cleanup[i](); err != nil {
				slog.Warn("release failed", "err", err)
			}
		}
	}()

	consumers := make([]*xstream.Stream, 0, pairs)
	for p := 0; p < pairs; p++ {
		dev := p % rt.DeviceCount()
		prod, err := rt.NewStream(dev)
		if err != nil {
			return 0, err
		}
		cleanup = append(cleanup, prod.Destroy)
		cons, err := rt.NewStream(dev)
		if err != nil {
			return 0, err
		}
		cleanup = append(cleanup, cons.Destroy)
		consumers = append(consumers, cons)

		base := p * regions * chunk
		for r := 0; r < regions; r++ {
			if err := rt.Dispatch(prod, xstream.NewRegion("fill", fill, base+r*chunk), false); err != nil {
				return 0, err
			}
		}

		ev, err := rt.CreateEvent()
		if err != nil {
			return 0, err
		}
		cleanup = append(cleanup, ev.Destroy)
		if err := ev.Record(prod); err != nil {
			return 0, err
		}
		if err := cons.WaitEvent(ev); err != nil {
			return 0, err
		}

		for r := 0; r < regions; r++ {
			if err := rt.Dispatch(cons, xstream.NewRegion("reduce", reduce, base+r*chunk), false); err != nil {
				return 0, err
			}
		}
	}

	for _, cons := range consumers {
		if err := cons.Synchronize(); err != nil {
			return 0, err
		}
	}
	return total.Load(), nil
}
