package json

import (
	"io"

	"github.com/bytedance/sonic"
)

// 统一封装项目内使用的 JSON 实现（基于 bytedance/sonic）。
//
// 约定：
//   - 业务代码一律 import 本包，不直接依赖 encoding/json 或 sonic；
//   - ConfigStd 与标准库行为保持兼容，便于排查序列化差异问题。
var (
	json = sonic.ConfigStd

	// Marshal 将对象编码为 JSON 字节序列。
	Marshal = json.Marshal
	// Unmarshal 将 JSON 字节序列解码到目标对象。
	Unmarshal = json.Unmarshal
	// MarshalIndent 以缩进格式编码，主要用于调试输出。
	MarshalIndent = json.MarshalIndent
)

// NewDecoder 创建一个流式 JSON 解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return json.NewDecoder(r)
}

// NewEncoder 创建一个流式 JSON 编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return json.NewEncoder(w)
}
