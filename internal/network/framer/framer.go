package framer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lk2023060901/chat-garden-go/internal/pool/bytebuffer"
)

// Envelope 的 Flags 位定义。
const (
	// FlagCompressed 表示 payload 经过压缩。
	FlagCompressed uint64 = 1 << 0
)

// headerSize 为定长报文头的编码长度。
//
// 布局（均为大端）：
//   op(uint32) | seq(uint64) | flags(uint64) | timestamp(int64) | size(uint32)
const headerSize = 4 + 8 + 8 + 8 + 4

// Header 是每帧报文携带的定长消息头。
type Header struct {
	// Op 为操作码，标识 payload 的业务类型。
	Op uint32
	// Seq 为发送方递增的帧序号。
	Seq uint64
	// Flags 为标志位集合（压缩等）。
	Flags uint64
	// Timestamp 为发送时刻的 Unix 毫秒时间戳。
	Timestamp int64
	// Size 为 payload 的字节长度，由 WriteFrame 自动修正。
	Size uint32
}

// Envelope 表示一帧完整报文：定长 Header + 变长 Payload。
type Envelope struct {
	Header  Header
	Payload []byte
}

// Framer 抽象了基于 Envelope 的打包/解包能力。
//
// 约定：
//   - 一帧数据的格式为：4 字节大端无符号整型（表示后续 Header+Payload 的长度）+ 定长 Header + Payload。
type Framer interface {
	// WriteFrame 将 Envelope 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, env *Envelope) error

	// ReadFrame 从 r 中读取一帧数据并解包为 Envelope。
	ReadFrame(r io.Reader) (*Envelope, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
// 适用于基于流的连接（如 TCP 等）。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大帧大小（Header+Payload 长度），单位字节。
	// 为 0 时使用默认值 defaultMaxFrameSize。
	MaxFrameSize uint32
}

const defaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// 编译期断言：确保 LengthPrefixedFramer 实现了 Framer 接口。
var _ Framer = (*LengthPrefixedFramer)(nil)

// WriteFrame 将 Envelope 编码为长度前缀帧并写入。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, env *Envelope) error {
	if env == nil {
		return fmt.Errorf("framer: envelope is nil")
	}

	// 自动修正 size 字段，保证与 payload 长度一致。
	env.Header.Size = uint32(len(env.Payload))

	length := uint32(headerSize) + env.Header.Size
	if length > f.effectiveMaxSize() {
		return fmt.Errorf("framer: frame size %d exceeds max %d", length, f.effectiveMaxSize())
	}

	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	var scratch [4 + headerSize]byte
	binary.BigEndian.PutUint32(scratch[0:4], length)
	encodeHeader(scratch[4:], &env.Header)

	_, _ = buf.Write(scratch[:])
	_, _ = buf.Write(env.Payload)

	if _, err := w.Write(buf.B); err != nil {
		return fmt.Errorf("framer: write frame failed: %w", err)
	}
	return nil
}

// ReadFrame 从流中读取一帧数据并解码为 Envelope。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("framer: read header failed: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length < headerSize {
		return nil, fmt.Errorf("framer: frame size %d below header size %d", length, headerSize)
	}
	if length > f.effectiveMaxSize() {
		return nil, fmt.Errorf("framer: frame size %d exceeds max %d", length, f.effectiveMaxSize())
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	// 确保底层切片容量足够。
	if cap(buf.B) < int(length) {
		buf.B = make([]byte, int(length))
	} else {
		buf.B = buf.B[:int(length)]
	}

	if _, err := io.ReadFull(r, buf.B); err != nil {
		return nil, fmt.Errorf("framer: read body failed: %w", err)
	}

	env := &Envelope{}
	decodeHeader(buf.B[:headerSize], &env.Header)

	payloadLen := int(length) - headerSize
	if uint32(payloadLen) != env.Header.Size {
		return nil, fmt.Errorf("framer: payload size %d mismatches header size %d", payloadLen, env.Header.Size)
	}
	if payloadLen > 0 {
		// 缓冲区随后会归还到池中，payload 需要独立拷贝。
		env.Payload = make([]byte, payloadLen)
		copy(env.Payload, buf.B[headerSize:length])
	}
	return env, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return f.MaxFrameSize
}

func encodeHeader(dst []byte, h *Header) {
	binary.BigEndian.PutUint32(dst[0:4], h.Op)
	binary.BigEndian.PutUint64(dst[4:12], h.Seq)
	binary.BigEndian.PutUint64(dst[12:20], h.Flags)
	binary.BigEndian.PutUint64(dst[20:28], uint64(h.Timestamp))
	binary.BigEndian.PutUint32(dst[28:32], h.Size)
}

func decodeHeader(src []byte, h *Header) {
	h.Op = binary.BigEndian.Uint32(src[0:4])
	h.Seq = binary.BigEndian.Uint64(src[4:12])
	h.Flags = binary.BigEndian.Uint64(src[12:20])
	h.Timestamp = int64(binary.BigEndian.Uint64(src[20:28]))
	h.Size = binary.BigEndian.Uint32(src[28:32])
}
