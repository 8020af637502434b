package source

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
)

// RetryPolicy controls how many references FetchRandom tries.
type RetryPolicy struct {
	MaxTries uint
	Delay    time.Duration

	// Discard, if set, is called with every reference whose fetch failed
	// for a reason other than the caller's context ending.
	Discard func(ref string)
}

// DefaultRetryPolicy tries up to five references, one second apart.
var DefaultRetryPolicy = RetryPolicy{MaxTries: 5, Delay: time.Second}

type fetched struct {
	pix *imaging.PixelBuffer
	ref string
}

// FetchRandom asks pick for a reference and fetches it from src. When the
// fetch fails another reference is picked, up to policy.MaxTries attempts.
// If pick has nothing to offer the call fails with source.not_available.
// It returns the buffer and the reference it came from.
func FetchRandom(ctx context.Context, src ImageSource, pick func() (string, bool), policy RetryPolicy) (*imaging.PixelBuffer, string, error) {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}

	op := func() (fetched, error) {
		ref, ok := pick()
		if !ok {
			return fetched{}, backoff.Permanent(apperrors.NotAvailable("no images available"))
		}
		pix, err := src.Fetch(ctx, ref)
		if err != nil {
			logger.Warn("problem with image, trying another", "ref", ref, "error", err)
			if ctx.Err() != nil {
				return fetched{}, backoff.Permanent(err)
			}
			if policy.Discard != nil {
				policy.Discard(ref)
			}
			return fetched{}, err
		}
		return fetched{pix: pix, ref: ref}, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(policy.MaxTries),
	)
	if err != nil {
		return nil, "", apperrors.Upstream("image fetch", err)
	}
	return res.pix, res.ref, nil
}
