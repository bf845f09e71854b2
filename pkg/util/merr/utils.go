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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Status 是跨进程边界传递错误的最小载体。
// code 为 0 时表示成功。
type Status struct {
	Code int32  `json:"code"`
	Msg  string `json:"msg,omitempty"`
}

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case chatError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := err.(chatError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// StatusOf 根据给定错误构造 Status。
// 当 err 为空时，返回一个表示成功的 Status。
func StatusOf(err error) *Status {
	if err == nil {
		return &Status{}
	}

	return &Status{
		Code: Code(err),
		Msg:  previousLastError(err).Error(),
	}
}

func previousLastError(err error) error {
	lastErr := err
	for {
		nextErr := errors.Unwrap(err)
		if nextErr == nil {
			break
		}
		lastErr = err
		err = nextErr
	}
	return lastErr
}

func Ok(status *Status) bool {
	return status != nil && status.Code == 0
}

// Error returns a error according to the given status,
// returns nil if the status is a success status
func Error(status *Status) error {
	if Ok(status) {
		return nil
	}

	// 仅携带 code 与 msg，统一按系统错误处理。
	return newChatError(status.Msg, status.Code, false)
}

func GetErrorType(err error) ErrorType {
	if merr, ok := err.(chatError); ok {
		return merr.errType
	}

	return SystemError
}

func WrapErrAsInputError(err error) error {
	if merr, ok := err.(chatError); ok {
		WithErrorType(InputError)(&merr)
		return merr
	}
	return err
}

// Service 相关错误封装。
func WrapErrServiceUnavailable(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceUnavailable, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Session 相关错误封装。
func WrapErrSessionNotLoggedIn(sessionID uint64, msg ...string) error {
	err := wrapFields(ErrSessionNotLoggedIn, value("session", sessionID))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// User 相关错误封装。
func WrapErrUserOffline(user string, msg ...string) error {
	err := wrapFields(ErrUserOffline, value("user", user))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Message 相关错误封装。
func WrapErrMessageNotFound(id int64, msg ...string) error {
	err := wrapFields(ErrMessageNotFound, value("id", id))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrMessageNotOwned(id int64, user string, msg ...string) error {
	err := wrapFields(ErrMessageNotOwned,
		value("id", id),
		value("user", user),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Room 相关错误封装。
func WrapErrRoomNotMember(name, user string, msg ...string) error {
	err := wrapFields(ErrRoomNotMember,
		value("room", name),
		value("user", user),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmtStr string, args ...any) error {
	return wrapFieldsWithDesc(ErrParameterInvalid, fmt.Sprintf(fmtStr, args...))
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name:  name,
		value: value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

func wrapFields(err chatError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err chatError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}
