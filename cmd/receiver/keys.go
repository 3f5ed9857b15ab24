package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/mattn/go-tty"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// renderNext asks the presentation loop to draw the next frame regardless of -ansi-art.
var renderNext atomic.Bool

func scanKeys(ctx context.Context) {
	tty, err := tty.Open()
	if err != nil {
		log.WithError(err).Warn("tty.Open, keys disabled")
		return
	}
	defer tty.Close()

	for ctx.Err() == nil {
		r, err := tty.ReadRune()
		if err != nil {
			log.WithError(err).Warn("tty.ReadRune")
			return
		}
		h, ok := keyMap[r]
		if !ok {
			continue
		}
		h.cb(ctx)
	}
}

type kmt = map[rune]struct {
	cb   func(context.Context)
	desc string
}

var keyMap kmt

func init() {
	keyMap = kmt{
		13: // enter
		{
			cb:   func(c context.Context) { renderNext.Store(true) },
			desc: "Dump ansi art frame",
		},
		'f': {
			cb: func(c context.Context) {
				cam, mast := coordinator.FusedAngle().Snapshot()
				fmt.Printf("%s frames=%d dropped=%d camera=%.2f mast=%.2f fused=%.2f\n",
					coordinator.State(), coordinator.Frames(), coordinator.Events().Dropped(),
					cam, mast, cam-mast)
				for _, l := range coordinator.Listeners() {
					fmt.Printf("%s\t%+v\n", l.Tag(), l.Stats())
				}
			},
			desc: "Get current state",
		},
		's': {
			cb: func(c context.Context) {
				go func() {
					if err := coordinator.Stop(); err != nil {
						log.WithError(err).Warn("coordinator.Stop")
					}
				}()
			},
			desc: "Stop recording",
		},
		'?': {
			desc: "Help",
			cb: func(c context.Context) {
				keys := maps.Keys(keyMap)
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Printf("%q\t%s\n", k, keyMap[k].desc)
				}
			},
		},
	}
}
