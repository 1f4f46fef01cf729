// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parallel

import (
	"context"
	"sync"

	"github.com/gorse-io/smurff/common/util"
	"github.com/juju/errors"
)

const chanSize = 1024

/* Parallel Schedulers */

// Parallel schedules and runs tasks in parallel. nJobs is the number of tasks. nWorkers is
// the number of executors. worker is the executed function which passed a worker id and a job id.
// The ctx argument allows callers to cancel outstanding work.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			jobId := i
			if err := util.SafeCall(func() error { return worker(0, jobId) }); err != nil {
				return errors.Trace(err)
			}
		}
	} else {
		c := make(chan int, chanSize)
		// producer
		go func() {
			defer close(c)
			for i := 0; i < nJobs; i++ {
				select {
				case <-ctx.Done():
					return
				case c <- i:
				}
			}
		}()
		// consumer
		var wg sync.WaitGroup
		errs := make([]error, nJobs)
		for j := 0; j < nWorkers; j++ {
			workerId := j
			wg.Go(func() {
				for {
					select {
					case <-ctx.Done():
						return
					case jobId, ok := <-c:
						if !ok {
							return
						}
						if err := util.SafeCall(func() error { return worker(workerId, jobId) }); err != nil {
							errs[jobId] = err
							return
						}
					}
				}
			})
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		for _, err := range errs {
			if err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// Chunks splits [0, nTasks) into nChunks contiguous ranges and runs each range on its own
// goroutine. The assignment of tasks to chunks only depends on nTasks and nChunks, so a worker
// keeping per-chunk state (e.g. a random generator) sees the same tasks on every call.
func Chunks(ctx context.Context, nTasks, nChunks int, worker func(chunkId, begin, end int) error) error {
	if nChunks > nTasks {
		nChunks = nTasks
	}
	if nChunks <= 1 {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		if nTasks == 0 {
			return nil
		}
		return errors.Trace(util.SafeCall(func() error { return worker(0, 0, nTasks) }))
	}
	var wg sync.WaitGroup
	errs := make([]error, nChunks)
	for j := 0; j < nChunks; j++ {
		chunkId := j
		wg.Go(func() {
			if err := ctx.Err(); err != nil {
				errs[chunkId] = err
				return
			}
			begin := nTasks * chunkId / nChunks
			end := nTasks * (chunkId + 1) / nChunks
			errs[chunkId] = util.SafeCall(func() error { return worker(chunkId, begin, end) })
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// For runs worker for every job in [0, nJobs) on nWorkers goroutines.
func For(ctx context.Context, nJobs, nWorkers int, worker func(int)) error {
	return Parallel(ctx, nJobs, nWorkers, func(_, jobId int) error {
		worker(jobId)
		return nil
	})
}
