package imagery

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
)

type fakeEngine struct {
	mu sync.Mutex

	scenes    map[string][]engine.Scene
	searchErr map[string]error
	values    map[string]*float64
	reduceErr map[string]error
	thumbURL  string
	thumbErr  error

	searches   map[string]int
	reductions []string
	thumbnails []engine.ThumbnailRequest
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		scenes:    map[string][]engine.Scene{},
		searchErr: map[string]error{},
		values:    map[string]*float64{},
		reduceErr: map[string]error{},
		searches:  map[string]int{},
		thumbURL:  "https://engine.example/thumb.png",
	}
}

func ptr(v float64) *float64 { return &v }

func (f *fakeEngine) SearchScenes(_ context.Context, q engine.SceneQuery) ([]engine.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[q.Collection]++
	if err := f.searchErr[q.Collection]; err != nil {
		return nil, err
	}
	scenes := f.scenes[q.Collection]
	if q.Limit > 0 && len(scenes) > q.Limit {
		scenes = scenes[:q.Limit]
	}
	return scenes, nil
}

func (f *fakeEngine) ReduceRegion(_ context.Context, r engine.ReduceRequest) (map[string]*float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reductions = append(f.reductions, r.Image.SceneID)
	if err := f.reduceErr[r.Image.SceneID]; err != nil {
		return nil, err
	}
	v, ok := f.values[r.Image.SceneID]
	if !ok {
		return map[string]*float64{}, nil
	}
	return map[string]*float64{IndexBand: v}, nil
}

func (f *fakeEngine) Thumbnail(_ context.Context, r engine.ThumbnailRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbnails = append(f.thumbnails, r)
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	return f.thumbURL, nil
}

func (f *fakeEngine) totalSearches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.searches {
		n += c
	}
	return n
}

var errEngine = errors.New("engine exploded")
