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
	"fmt"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/smurff/common/util"
	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := util.RangeInt(10000)
		b := make([]int, len(a))
		workerIds := make([]int, len(a))
		// multiple threads
		_ = Parallel(context.Background(), len(a), 4, func(workerId, jobId int) error {
			b[jobId] = a[jobId]
			workerIds[jobId] = workerId
			time.Sleep(time.Microsecond)
			return nil
		})
		workersSet := mapset.NewSet(workerIds...)
		assert.Equal(t, a, b)
		assert.GreaterOrEqual(t, 4, workersSet.Cardinality())
		assert.Less(t, 1, workersSet.Cardinality())
		// single thread
		_ = Parallel(context.Background(), len(a), 1, func(workerId, jobId int) error {
			b[jobId] = a[jobId]
			workerIds[jobId] = workerId
			return nil
		})
		workersSet = mapset.NewSet(workerIds...)
		assert.Equal(t, a, b)
		assert.Equal(t, 1, workersSet.Cardinality())
	})
}

func TestParallelFail(t *testing.T) {
	// multiple threads
	err := Parallel(context.Background(), 10000, 4, func(workerId, jobId int) error {
		if jobId%2 == 1 {
			return fmt.Errorf("error from %d", jobId)
		}
		return nil
	})
	assert.Error(t, err)
	// single thread
	err = Parallel(context.Background(), 10000, 1, func(workerId, jobId int) error {
		if jobId%2 == 1 {
			return fmt.Errorf("error from %d", jobId)
		}
		return nil
	})
	assert.Error(t, err)
}

func TestParallelCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var count atomic.Int32

		err := Parallel(ctx, 100, 4, func(_, jobId int) error {
			if jobId == 0 {
				cancel()
			}
			count.Add(1)
			time.Sleep(100 * time.Millisecond)
			return nil
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, int(count.Load()), 100)
	})
}

func TestFor(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		a := util.RangeInt(10000)
		b := make([]int, len(a))
		err := For(context.Background(), len(a), 4, func(jobId int) {
			b[jobId] = a[jobId]
			time.Sleep(time.Microsecond)
		})
		assert.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestChunks(t *testing.T) {
	a := util.RangeInt(1001)
	b := make([]int, len(a))
	chunkIds := make([]int, len(a))
	err := Chunks(context.Background(), len(a), 4, func(chunkId, begin, end int) error {
		for i := begin; i < end; i++ {
			b[i] = a[i]
			chunkIds[i] = chunkId
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// assignment is stable
	again := make([]int, len(a))
	err = Chunks(context.Background(), len(a), 4, func(chunkId, begin, end int) error {
		for i := begin; i < end; i++ {
			again[i] = chunkId
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, chunkIds, again)
	assert.Equal(t, 4, mapset.NewSet(chunkIds...).Cardinality())

	// more chunks than tasks
	var count atomic.Int32
	err = Chunks(context.Background(), 2, 8, func(_, begin, end int) error {
		count.Add(int32(end - begin))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), count.Load())

	// no tasks
	err = Chunks(context.Background(), 0, 4, func(_, _, _ int) error {
		return fmt.Errorf("unexpected call")
	})
	assert.NoError(t, err)
}

func TestChunksPanic(t *testing.T) {
	for _, nChunks := range []int{1, 4} {
		err := Chunks(context.Background(), 100, nChunks, func(chunkId, begin, _ int) error {
			if begin == 0 {
				panic("index out of range")
			}
			return nil
		})
		assert.ErrorContains(t, err, "panic: index out of range")
	}
	err := Parallel(context.Background(), 100, 4, func(_, jobId int) error {
		if jobId == 50 {
			panic("index out of range")
		}
		return nil
	})
	assert.ErrorContains(t, err, "panic: index out of range")
}

func TestChunksFail(t *testing.T) {
	err := Chunks(context.Background(), 100, 4, func(chunkId, _, _ int) error {
		if chunkId == 2 {
			return fmt.Errorf("error from %d", chunkId)
		}
		return nil
	})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Chunks(ctx, 100, 1, func(_, _, _ int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	err = Chunks(ctx, 100, 4, func(_, _, _ int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
