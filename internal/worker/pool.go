// Package worker runs terrain generation jobs on a fixed set of background
// goroutines.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/sectorstream/internal/sector"
	"github.com/Faultbox/sectorstream/internal/tile"
	"github.com/Faultbox/sectorstream/internal/track"
)

// ErrNilTile is set on a job submitted without a tile.
var ErrNilTile = errors.New("worker: job has no tile")

// Job pairs a tile with the buffers a worker fills for it. The submitting
// goroutine must not touch a job between TrySubmit and receiving it back
// from Completed.
type Job struct {
	Tile       *tile.Tile
	Generation uint64
	Sector     sector.Sector

	Data tile.MeshData

	// Checkpoint is set, in world space, when the sector carries one.
	Checkpoint   *track.Transform
	CheckpointID uint32
	// PlayerSpawn is set, in world space, for the first checkpoint sector.
	PlayerSpawn *track.Transform

	Worker int
	Err    error
}

// Builder fills a job. It runs on worker goroutines and must not touch
// renderer state.
type Builder interface {
	Build(ctx context.Context, job *Job) error
}

// Pool is a fixed set of workers, each with a private input queue, sharing
// one completion queue.
type Pool struct {
	inputs  []chan *Job
	done    chan *Job
	builder Builder
	log     *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewPool creates n workers whose input queues hold capacity jobs each.
func NewPool(n, capacity int, builder Builder, log *zap.Logger) *Pool {
	n = max(n, 1)
	capacity = max(capacity, 1)
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		inputs:  make([]chan *Job, n),
		done:    make(chan *Job, n*(capacity+1)),
		builder: builder,
		log:     log,
	}
	for i := range p.inputs {
		p.inputs[i] = make(chan *Job, capacity)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.inputs) }

// Start launches the workers. They run until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for i := range p.inputs {
		p.group.Go(func() error {
			return p.run(ctx, i)
		})
	}
	p.log.Info("workers started", zap.Int("workers", len(p.inputs)))
}

// TrySubmit queues job on worker i without blocking. It reports false when
// that worker's queue is full.
func (p *Pool) TrySubmit(i int, job *Job) bool {
	job.Worker = i
	select {
	case p.inputs[i] <- job:
		return true
	default:
		return false
	}
}

// Completed delivers finished jobs, successful or not.
func (p *Pool) Completed() <-chan *Job { return p.done }

// Stop signals the workers, waits for them and discards queued jobs.
// It returns the number of discarded jobs.
func (p *Pool) Stop() int {
	if p.cancel != nil {
		p.cancel()
	}
	if p.group != nil {
		if err := p.group.Wait(); err != nil {
			p.log.Error("worker exited with error", zap.Error(err))
		}
	}

	discarded := 0
	for _, in := range p.inputs {
		for drained := false; !drained; {
			select {
			case <-in:
				discarded++
			default:
				drained = true
			}
		}
	}
	p.log.Info("workers stopped", zap.Int("discarded", discarded))
	return discarded
}

func (p *Pool) run(ctx context.Context, i int) error {
	log := p.log.With(zap.Int("worker", i))
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return nil
		case job := <-p.inputs[i]:
			p.process(ctx, log, job)
			select {
			case p.done <- job:
			case <-ctx.Done():
				return nil
			}
		}
	}
	return nil
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, job *Job) {
	if job.Tile == nil {
		job.Err = ErrNilTile
		log.Error("dropping job", zap.Stringer("sector", job.Sector), zap.Error(job.Err))
		return
	}
	if err := p.builder.Build(ctx, job); err != nil {
		job.Err = err
		log.Error("job failed", zap.Stringer("sector", job.Sector), zap.Error(err))
		return
	}
	log.Debug("job done", zap.Stringer("sector", job.Sector))
}
