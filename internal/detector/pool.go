package detector

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrPoolClosed is returned by Detect after Close.
var ErrPoolClosed = errors.New("detector pool closed")

// Pool hands each Detect call exclusive use of one of several detectors,
// so concurrent requests never share a helper process.
type Pool struct {
	detectors []Detector
	idle      chan Detector
	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool builds a pool of size detectors using factory. Detectors created
// before a factory failure are closed.
func NewPool(size int, factory func() (Detector, error)) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		idle:   make(chan Detector, size),
		closed: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		d, err := factory()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.detectors = append(p.detectors, d)
		p.idle <- d
	}

	return p, nil
}

// Size returns the number of detectors in the pool.
func (p *Pool) Size() int {
	return len(p.detectors)
}

// Detect blocks until a detector is free, then runs it on frame.
func (p *Pool) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	case d := <-p.idle:
		defer func() { p.idle <- d }()
		return d.Detect(frame)
	}
}

// Close closes every detector in the pool.
func (p *Pool) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.closed)
		for _, d := range p.detectors {
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
