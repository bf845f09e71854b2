// Copyright (c) 2019 The Gnet Authors. All rights reserved.
// Copyright (c) 2016 Aliaksandr Valialkin, VertaMedia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Use of this source code is governed by a MIT license that can be found
// at https://github.com/valyala/bytebufferpool/blob/master/LICENSE

package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsEmptyBuffer(t *testing.T) {
	b := Get()
	require.NotNil(t, b)
	assert.Equal(t, 0, b.Buffered())
}

func TestPutResetsBuffer(t *testing.T) {
	b := Get()
	_, err := b.Write([]byte("leftover frame bytes"))
	require.NoError(t, err)
	require.NotZero(t, b.Buffered())

	Put(b)

	// 无论池中返还的是哪个实例，拿到的缓冲区都必须是空的。
	nb := Get()
	assert.Equal(t, 0, nb.Buffered())
	Put(nb)
}
