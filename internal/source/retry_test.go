package source

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
)

// mapSource serves buffers by ref; unknown refs fail.
type mapSource struct {
	images map[string]*imaging.PixelBuffer
	calls  []string
}

func (m *mapSource) Fetch(_ context.Context, ref string) (*imaging.PixelBuffer, error) {
	m.calls = append(m.calls, ref)
	if pix, ok := m.images[ref]; ok {
		return pix, nil
	}
	return nil, errors.New("broken image")
}

func sequence(refs ...string) func() (string, bool) {
	i := 0
	return func() (string, bool) {
		if i >= len(refs) {
			return "", false
		}
		i++
		return refs[i-1], true
	}
}

func TestFetchRandom_RetriesUntilSuccess(t *testing.T) {
	good := imaging.Solid(2, 2, color.RGBA{A: 255})
	src := &mapSource{images: map[string]*imaging.PixelBuffer{"good": good}}

	pix, ref, err := FetchRandom(context.Background(), src, sequence("bad1", "bad2", "good"), RetryPolicy{MaxTries: 5})
	require.NoError(t, err)
	assert.Same(t, good, pix)
	assert.Equal(t, "good", ref)
	assert.Equal(t, []string{"bad1", "bad2", "good"}, src.calls)
}

func TestFetchRandom_GivesUp(t *testing.T) {
	src := &mapSource{}
	_, _, err := FetchRandom(context.Background(), src, sequence("a", "b", "c", "d"), RetryPolicy{MaxTries: 2})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSourceUpstream), "got %v", err)
	assert.Len(t, src.calls, 2)
}

func TestFetchRandom_NothingToPick(t *testing.T) {
	src := &mapSource{}
	_, _, err := FetchRandom(context.Background(), src, sequence(), DefaultRetryPolicy)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSourceNotAvailable), "got %v", err)
	assert.Empty(t, src.calls)
}

func TestFetchRandom_DiscardsBrokenRefs(t *testing.T) {
	good := imaging.Solid(2, 2, color.RGBA{A: 255})
	src := &mapSource{images: map[string]*imaging.PixelBuffer{"good": good}}

	var discarded []string
	policy := RetryPolicy{MaxTries: 5, Discard: func(ref string) { discarded = append(discarded, ref) }}
	_, ref, err := FetchRandom(context.Background(), src, sequence("bad1", "good", "bad2"), policy)
	require.NoError(t, err)
	assert.Equal(t, "good", ref)
	assert.Equal(t, []string{"bad1"}, discarded)
}

func TestFetchRandom_CancelledContextDiscardsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	discarded := 0
	policy := RetryPolicy{MaxTries: 3, Discard: func(string) { discarded++ }}
	_, _, err := FetchRandom(ctx, &mapSource{}, sequence("a", "b"), policy)
	require.Error(t, err)
	assert.Zero(t, discarded)
}
