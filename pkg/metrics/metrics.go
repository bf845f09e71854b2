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

package metrics

import (
	// #nosec
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// chatNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	chatNamespace = "chat"

	// 以下为当前使用的通用标签名。
	kindLabelName   = "kind"
	reasonLabelName = "reason"
	resultLabelName = "result"
	opLabelName     = "op"
	statusLabelName = "status"
)

var (
	// buckets 为请求耗时直方图的桶划分，单位为毫秒。
	// 实际桶分布为：
	// [1 2 4 8 16 32 64 128 256 512 1024 2048 4096 8192 16384 32768 65536 1.31072e+05]
	buckets = prometheus.ExponentialBuckets(1, 2, 18)

	// payloadBuckets 为消息体大小的桶划分，单位为字节。
	payloadBuckets = []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216}

	MessagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "messages_routed_total",
			Help:      "number of messages routed, partitioned by message kind",
		}, []string{kindLabelName})

	MessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "messages_delivered_total",
			Help:      "number of per-session deliveries enqueued",
		})

	DeliveriesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "deliveries_dropped_total",
			Help:      "number of deliveries dropped, partitioned by reason",
		}, []string{reasonLabelName})

	MessagesEdited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "messages_edited_total",
			Help:      "number of successful in-place edits",
		})

	RepliesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "replies_resolved_total",
			Help:      "number of reply resolutions, partitioned by lookup result",
		}, []string{resultLabelName})

	OnlineSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: chatNamespace,
			Name:      "online_sessions",
			Help:      "number of authenticated live sessions",
		})

	RegisteredRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: chatNamespace,
			Name:      "registered_rooms",
			Help:      "number of rooms known to the room registry",
		})

	MessagePayloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: chatNamespace,
			Name:      "message_payload_bytes",
			Help:      "size distribution of routed message payloads",
			Buckets:   payloadBuckets,
		})

	RoomRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: chatNamespace,
			Name:      "room_request_duration_ms",
			Help:      "latency of room service requests in milliseconds",
			Buckets:   buckets,
		}, []string{opLabelName, statusLabelName})

	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标。
// 通常应在 init 函数中调用。
func Register(r prometheus.Registerer) {
	r.MustRegister(MessagesRouted)
	r.MustRegister(MessagesDelivered)
	r.MustRegister(DeliveriesDropped)
	r.MustRegister(MessagesEdited)
	r.MustRegister(RepliesResolved)
	r.MustRegister(OnlineSessions)
	r.MustRegister(RegisteredRooms)
	r.MustRegister(MessagePayloadBytes)
	r.MustRegister(RoomRequestDuration)
	metricRegisterer = r
}
