// Package replica implements an h5.Store that mirrors its writes to several nested stores.
package replica

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/h5"
	"github.com/bobg/h5/store"
)

var _ h5.Store = (*Store)(nil)

// Store is an h5.Store that delegates reads and writes to two sets of nested stores.
// One set is synchronous:
// writes to all of these must succeed before a call to Append or WriteAt returns,
// and an error from any will cause the call to fail.
// The other set is asynchronous:
// a write queues requests on these stores but does not wait for them to finish.
// However, if any asynchronous write encounters an error,
// the whole Store is put into an error state and further operations will fail.
//
// Every nested store must begin with the same contents,
// since record offsets are only meaningful if each append lands at the same place in all of them.
// An append that lands at different offsets in different nested stores is an error.
type Store struct {
	sync   []h5.Store
	async  []asyncChans
	cancel context.CancelFunc

	mu  sync.Mutex // protects err
	err error      // the error from an async goroutine, if any
}

type asyncChans struct {
	reqs chan<- request
	errs <-chan error
}

// A request is a write queued for an asynchronous store.
// Off is where the bytes landed in the synchronous stores;
// for an append, the async store must place them there too.
type request struct {
	append bool
	off    uint64
	b      []byte
}

// OffsetError is the error produced when nested stores disagree about where an append landed.
type OffsetError struct {
	Want, Got uint64
}

func (e OffsetError) Error() string {
	return fmt.Sprintf("nested store appended at offset %d, want %d", e.Got, e.Want)
}

// New produces a new Store.
// The set of synchronous stores must be non-empty.
// The set of asynchronous stores may be empty.
// If there are any asynchronous stores,
// goroutines are launched for them,
// and canceling the given context object causes those to exit,
// placing the Store in an error state.
//
// Normally, writes to asynchronous stores do not block,
// but the queue for each nested store has a fixed length given by n,
// which must be 1 or greater.
// If any async store falls too far behind,
// writes will block until all requests can be queued.
func New(ctx context.Context, sync []h5.Store, async []h5.Store, n int) *Store {
	result := &Store{sync: sync}

	if len(async) > 0 {
		ctx, result.cancel = context.WithCancel(ctx)

		selectCases := make([]reflect.SelectCase, 1+len(async))

		for i, a := range async {
			var (
				reqs = make(chan request, n)
				errs = make(chan error, 1)
			)

			result.async = append(result.async, asyncChans{reqs: reqs, errs: errs})

			selectCases[i].Dir = reflect.SelectRecv
			selectCases[i].Chan = reflect.ValueOf(errs)

			go runAsync(ctx, a, reqs, errs)
		}

		selectCases[len(async)].Dir = reflect.SelectRecv
		selectCases[len(async)].Chan = reflect.ValueOf(ctx.Done())

		go func() {
			_, errval, ok := reflect.Select(selectCases)
			if ok {
				result.cancel()
				result.mu.Lock()
				result.err = errval.Interface().(error)
				result.mu.Unlock()
			}
		}()
	}

	return result
}

// Runs as a goroutine until ctx is canceled or an error occurs (which it writes to errs).
func runAsync(ctx context.Context, s h5.Store, reqs <-chan request, errs chan<- error) {
	defer close(errs)

	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return

		case req := <-reqs:
			if !req.append {
				if err := s.WriteAt(ctx, req.off, req.b); err != nil {
					errs <- err
					return
				}
				continue
			}
			off, _, err := s.Append(ctx, req.b)
			if err != nil {
				errs <- err
				return
			}
			if off != req.off {
				errs <- OffsetError{Want: req.off, Got: off}
				return
			}
		}
	}
}

func (s *Store) checkErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) enqueue(ctx context.Context, req request) error {
	if len(s.async) == 0 {
		return nil
	}
	req.b = append([]byte(nil), req.b...) // callers may reuse b
	for _, a := range s.async {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case a.reqs <- req:
		}
	}
	return nil
}

func (s *Store) fail() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Append implements h5.Store.
// The bytes are appended to all synchronous nested stores,
// which must all place them at the same offset.
// A request to append them is then queued for any asynchronous nested stores.
func (s *Store) Append(ctx context.Context, b []byte) (uint64, uint64, error) {
	if err := s.checkErr(); err != nil {
		return 0, 0, errors.Wrap(err, "in async-store goroutine")
	}

	offs := make([]uint64, len(s.sync))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range s.sync {
		i, st := i, st
		g.Go(func() error {
			off, _, err := st.Append(gctx, b)
			offs[i] = off
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail()
		return 0, 0, err
	}
	for _, off := range offs[1:] {
		if off != offs[0] {
			s.fail()
			return 0, 0, OffsetError{Want: offs[0], Got: off}
		}
	}

	if err := s.enqueue(ctx, request{append: true, off: offs[0], b: b}); err != nil {
		return 0, 0, err
	}
	return offs[0], uint64(len(b)), nil
}

// WriteAt implements h5.Store.
// It overwrites the bytes in all synchronous nested stores
// and queues the same write for any asynchronous ones.
func (s *Store) WriteAt(ctx context.Context, off uint64, b []byte) error {
	if err := s.checkErr(); err != nil {
		return errors.Wrap(err, "in async-store goroutine")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range s.sync {
		st := st
		g.Go(func() error {
			return st.WriteAt(gctx, off, b)
		})
	}
	if err := g.Wait(); err != nil {
		s.fail()
		return err
	}
	return s.enqueue(ctx, request{off: off, b: b})
}

// ReadAt implements h5.Reader.
// It delegates the request to all of the synchronous stores in s,
// returning the result from the first one to respond without error
// and canceling the request to the others.
// If all synchronous stores respond with an error,
// one of those errors is returned.
func (s *Store) ReadAt(ctx context.Context, off uint64, n int) ([]byte, error) {
	if err := s.checkErr(); err != nil {
		return nil, errors.Wrap(err, "in async-store goroutine")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group

	ch := make(chan []byte)
	for _, st := range s.sync {
		st := st
		g.Go(func() error {
			b, err := st.ReadAt(ctx, off, n)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- b:
			}
			return nil
		})
	}

	var err error
	go func() {
		err = g.Wait()
		close(ch)
	}()

	if b, ok := <-ch; ok {
		return b, nil
	}
	return nil, err
}

// Size implements h5.Reader.
// It is the size of the first synchronous store.
func (s *Store) Size(ctx context.Context) (uint64, error) {
	if err := s.checkErr(); err != nil {
		return 0, errors.Wrap(err, "in async-store goroutine")
	}
	return s.sync[0].Size(ctx)
}

func init() {
	store.Register("replica", func(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
		var (
			syncStores  []h5.Store
			asyncStores []h5.Store
		)

		sync, ok := conf["sync"].([]interface{})
		if !ok || len(sync) == 0 {
			return nil, errors.New(`missing "sync" parameter`)
		}
		for _, nested := range sync {
			nestedConf, ok := nested.(map[string]interface{})
			if !ok {
				return nil, errors.New(`"sync" item is not an object`)
			}
			nestedStore, err := store.FromConfig(ctx, nestedConf)
			if err != nil {
				return nil, errors.Wrap(err, "creating nested sync store")
			}
			syncStores = append(syncStores, nestedStore)
		}

		if async, ok := conf["async"].([]interface{}); ok {
			for _, nested := range async {
				nestedConf, ok := nested.(map[string]interface{})
				if !ok {
					return nil, errors.New(`"async" item is not an object`)
				}
				nestedStore, err := store.FromConfig(ctx, nestedConf)
				if err != nil {
					return nil, errors.Wrap(err, "creating nested async store")
				}
				asyncStores = append(asyncStores, nestedStore)
			}
		}

		queueLen, err := store.Int(conf, "queuelen", 1)
		if err != nil {
			return nil, errors.Wrap(err, "parsing queuelen")
		}

		return New(ctx, syncStores, asyncStores, queueLen), nil
	})
}
