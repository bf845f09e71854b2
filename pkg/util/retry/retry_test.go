// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestDoEventuallySucceeds(t *testing.T) {
	ctx := context.Background()

	n := 0
	fn := func() error {
		if n < 3 {
			n++
			return errors.New("transient")
		}
		return nil
	}

	err := Do(ctx, fn, Attempts(10), Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDoReachesMaxAttempts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	fn := func() error {
		calls++
		return errors.New("always fails")
	}

	err := Do(ctx, fn, Attempts(3), Sleep(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoUnrecoverableStopsImmediately(t *testing.T) {
	ctx := context.Background()

	calls := 0
	fn := func() error {
		calls++
		return Unrecoverable(errors.New("fatal"))
	}

	err := Do(ctx, fn, Attempts(10), Sleep(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsRecoverable(err))
}

func TestDoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error { return errors.New("never runs") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandleShouldRetryFalse(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Handle(ctx, func() (bool, error) {
		calls++
		return false, errors.New("permanent")
	}, Attempts(5), Sleep(time.Millisecond))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
