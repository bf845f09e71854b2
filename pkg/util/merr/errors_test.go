// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrMessageNotFound(1)
	errors.Wrap(err, "failed to resolve edit target")
	s.ErrorIs(err, ErrMessageNotFound)
	s.Equal(Code(ErrMessageNotFound), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))

	sameCodeErr := newChatError("new error", ErrMessageNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrMessageNotFound))
}

func (s *ErrSuite) TestStatus() {
	err := WrapErrRoomNotMember("lobby", "ana")
	status := StatusOf(err)
	restoredErr := Error(status)

	s.ErrorIs(err, restoredErr)
	s.Equal(int32(0), StatusOf(nil).Code)
	s.Nil(Error(&Status{}))
}

func (s *ErrSuite) TestWrap() {
	// Service 相关错误。
	s.ErrorIs(WrapErrServiceUnavailable("connection refused", "dial room service"), ErrServiceUnavailable)
	s.ErrorIs(WrapErrServiceInternal("never throw out"), ErrServiceInternal)

	// Session / User 相关错误。
	s.ErrorIs(WrapErrSessionNotLoggedIn(7), ErrSessionNotLoggedIn)
	s.ErrorIs(WrapErrUserOffline("ana"), ErrUserOffline)

	// Message / Room 相关错误。
	s.ErrorIs(WrapErrMessageNotFound(42), ErrMessageNotFound)
	s.ErrorIs(WrapErrMessageNotOwned(42, "bojan"), ErrMessageNotOwned)
	s.ErrorIs(WrapErrRoomNotMember("lobby", "ana"), ErrRoomNotMember)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalidMsg("empty room name"), ErrParameterInvalid)
}

func (s *ErrSuite) TestIsRetryable() {
	s.True(IsRetryableErr(ErrServiceUnavailable))
	s.False(IsRetryableErr(ErrMessageNotFound))
	s.False(IsRetryableErr(errors.New("plain")))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())

	s.NoError(Combine(nil, nil))
	s.Error(Combine(nil, errFirst))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
