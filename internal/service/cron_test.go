package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/model"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/utils/lock"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) Refresh(context.Context) { c.n.Add(1) }

type countingFees struct{ invalidated, estimated atomic.Int32 }

func (f *countingFees) Invalidate(context.Context) error {
	f.invalidated.Add(1)
	return nil
}

func (f *countingFees) Estimates(context.Context) (model.FeeEstimates, bool) {
	f.estimated.Add(1)
	return model.FeeEstimates{}, false
}

type failingPool struct{ n atomic.Int32 }

func (p *failingPool) Refresh(context.Context) (*styx.PoolStatus, error) {
	p.n.Add(1)
	return nil, errors.New("pool offline")
}

func TestCron_RefreshBalances(t *testing.T) {
	r := &countingRefresher{}
	s := NewCronService(lock.NewMemoryLock(), "", r, nil, nil)
	s.RefreshBalances()
	assert.Equal(t, int32(1), r.n.Load())
}

func TestCron_WarmFeesSkipsWhenLockHeld(t *testing.T) {
	locker := lock.NewMemoryLock()
	fees := &countingFees{}
	s := NewCronService(locker, "", &countingRefresher{}, fees, nil)

	s.WarmFees()
	assert.Equal(t, int32(1), fees.estimated.Load())

	ok, err := locker.Acquire(context.Background(), lock.JobKey("warm_fees"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	s.WarmFees()
	assert.Equal(t, int32(1), fees.estimated.Load(), "another instance holds the lock")
}

func TestCron_WarmPoolToleratesErrors(t *testing.T) {
	pool := &failingPool{}
	s := NewCronService(lock.NewMemoryLock(), "", &countingRefresher{}, nil, pool)
	s.WarmPool()
	s.WarmPool()
	assert.Equal(t, int32(2), pool.n.Load(), "lock is released after each run")
}

func TestCron_StartRejectsBadSpec(t *testing.T) {
	s := NewCronService(lock.NewMemoryLock(), "every now and then", &countingRefresher{}, nil, nil)
	assert.Error(t, s.Start())
}
