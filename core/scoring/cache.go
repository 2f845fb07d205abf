package scoring

import (
	"sync"
	"sync/atomic"
)

type (
	ScorerLoader  func(path string) (Scorer, error)
	EncoderLoader func(path string) (Encoder, error)

	// Loaders overrides how artifacts are read.
	Loaders struct {
		Scorer  ScorerLoader
		Encoder EncoderLoader
	}

	scorerHandle  struct{ s Scorer }
	encoderHandle struct{ e Encoder }
)

// Cache lazily loads the scoring artifact and its encoder, once per process.
// Concurrent first callers wait for a single load; later calls are lock-free.
// A failed load is not cached.
type Cache struct {
	scorerPath  string
	encoderPath string
	loadScorer  ScorerLoader
	loadEncoder EncoderLoader

	scorerMu  sync.Mutex
	scorer    atomic.Pointer[scorerHandle]
	encoderMu sync.Mutex
	encoder   atomic.Pointer[encoderHandle]
}

func NewCache(scorerPath, encoderPath string, loaders ...Loaders) *Cache {
	c := &Cache{
		scorerPath:  scorerPath,
		encoderPath: encoderPath,
		loadScorer:  LoadLinearModel,
		loadEncoder: LoadOrdinalEncoder,
	}
	if len(loaders) > 0 {
		if loaders[0].Scorer != nil {
			c.loadScorer = loaders[0].Scorer
		}
		if loaders[0].Encoder != nil {
			c.loadEncoder = loaders[0].Encoder
		}
	}
	return c
}

func (c *Cache) Scorer() (Scorer, error) {
	if h := c.scorer.Load(); h != nil {
		return h.s, nil
	}

	c.scorerMu.Lock()
	defer c.scorerMu.Unlock()
	if h := c.scorer.Load(); h != nil {
		return h.s, nil
	}
	s, err := c.loadScorer(c.scorerPath)
	if err != nil {
		return nil, err
	}
	c.scorer.Store(&scorerHandle{s: s})
	return s, nil
}

func (c *Cache) Encoder() (Encoder, error) {
	if h := c.encoder.Load(); h != nil {
		return h.e, nil
	}

	c.encoderMu.Lock()
	defer c.encoderMu.Unlock()
	if h := c.encoder.Load(); h != nil {
		return h.e, nil
	}
	e, err := c.loadEncoder(c.encoderPath)
	if err != nil {
		return nil, err
	}
	c.encoder.Store(&encoderHandle{e: e})
	return e, nil
}
