package walkie

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// replay plays message id from the start and keeps following it while it
// grows. Each pass plays whatever was decoded beyond the current offset,
// then waits for the buffer to change. Once the message is complete one
// last pass plays the tail and replay returns.
func (p *Playback) replay(ctx context.Context, u *unit, id string) error {
	var offset time.Duration
	for {
		clip, snap, err := p.prober.Decode(ctx, id)
		switch {
		case err == nil:
			if d := clip.Duration(); d > offset {
				if err := p.player.Play(ctx, clip, offset); err != nil {
					return err
				}
				offset = d
				u.setOffset(offset)
			}
		case errors.Is(err, ErrUnknownMessage):
			return err
		case errors.Is(err, ErrNotDecodable):
			if snap.Status == Complete {
				if url := p.urlOf(id); url != "" {
					p.logger.InfoPrintf("message %s not decodable in memory, playing %s", id, url)
					return p.playURL(ctx, url)
				}
				return fmt.Errorf("replay %s: %w", id, err)
			}
		default:
			return err
		}

		if snap.Status == Complete {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-snap.Changed:
		}
	}
}
