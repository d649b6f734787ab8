// Package ratelimit paces outgoing media requests.
//
// A Pacer keeps a minimum interval between consecutive requests. dyfav uses
// one pacer between items and another between the images of one image set.
// Items that are already on disk never reserve a slot, so resuming a run
// over a mostly complete output tree does not sleep.
//
//	p := ratelimit.NewPacer(500 * time.Millisecond)
//	if err := p.Wait(ctx); err != nil {
//	    return err // cancelled
//	}
package ratelimit
