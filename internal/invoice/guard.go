package invoice

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// RenderGuard serialises PDF generation per invoice so two concurrent
// requests never write the same path at once.
type RenderGuard interface {
	// Do runs fn unless a render for key is already underway. Callers that
	// wait on another render receive its result. A caller whose ctx ends
	// stops waiting; fn itself keeps running for the others.
	Do(ctx context.Context, key string, fn func() (string, error)) (string, error)
}

// LocalGuard coalesces concurrent renders inside one process.
type LocalGuard struct {
	group singleflight.Group
}

// NewLocalGuard creates an in-process guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{}
}

// Do implements RenderGuard.
func (g *LocalGuard) Do(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	ch := g.group.DoChan(key, func() (interface{}, error) {
		return fn()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
