package codec

import (
	"fmt"
	"io"

	"github.com/lk2023060901/chat-garden-go/internal/network/compressor"
	"github.com/lk2023060901/chat-garden-go/internal/network/framer"
	"github.com/lk2023060901/chat-garden-go/internal/network/serializer"
)

// Codec 抽象了“从业务对象到网络帧，以及从网络帧回到业务对象”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//   msg --> serializer --> [compress?] --> Envelope{Header+Payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//   framer.ReadFrame --> Envelope{Header+Payload} --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将业务对象编码并写入到底层流。
	//
	//   - header：由调用方构造的报文头（不可为 nil）。
	//   - msg   ：待编码的业务对象，由 serializer 负责实际序列化。
	Encode(w io.Writer, header *framer.Header, msg any) error

	// Decode 从底层流中读取一帧报文，并解码到 msg 中。
	//
	//   - msg 为接收解码结果的目标对象（通常为指针）；若为 nil，则仅解析并返回 Header。
	Decode(r io.Reader, msg any) (*framer.Header, error)

	// DecodeRaw 从底层流中读取一帧报文，并返回消息头和已完成解压的业务字节。
	//
	// 说明：
	//   - 不负责反序列化为具体对象，仅返回“明文字节”供上层自行处理；
	//   - 对应 Encode 的逆过程：framer.ReadFrame -> [decompress?]。
	DecodeRaw(r io.Reader) (*framer.Header, []byte, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer
	Serializer serializer.Serializer
	Compressor compressor.Compressor // 允许为 nil（内部会用 NopCompressor）

	EnableCompression bool // 是否启用压缩（影响压缩行为与 Header.Flags）
}

type codec struct {
	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor

	compress bool
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Framer == nil {
		return nil, fmt.Errorf("codec: framer is nil")
	}
	if opts.Serializer == nil {
		return nil, fmt.Errorf("codec: serializer is nil")
	}

	c := &codec{
		framer:     opts.Framer,
		serializer: opts.Serializer,
		compress:   opts.EnableCompression,
	}

	if opts.Compressor != nil {
		c.compressor = opts.Compressor
	} else {
		c.compressor = compressor.NopCompressor{}
	}

	return c, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, header *framer.Header, msg any) error {
	if w == nil {
		return fmt.Errorf("codec: writer is nil")
	}
	if msg == nil {
		return fmt.Errorf("codec: msg is nil")
	}
	if header == nil {
		return fmt.Errorf("codec: header is nil")
	}

	// 第一步：业务对象序列化。
	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return fmt.Errorf("codec: marshal failed: %w", err)
	}

	// 在设置新 flags 之前，先清理压缩相关位，避免复用 header 时遗留旧状态。
	header.Flags &^= framer.FlagCompressed

	// 第二步：可选压缩。
	if c.compress && len(body) > 0 {
		compressed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return fmt.Errorf("codec: compress failed: %w", err)
		}
		body = compressed
		header.Flags |= framer.FlagCompressed
	}

	env := &framer.Envelope{
		Header:  *header,
		Payload: body,
	}

	if err := c.framer.WriteFrame(w, env); err != nil {
		return fmt.Errorf("codec: write frame failed: %w", err)
	}
	// 将 framer 修正后的 size 回写给调用方。
	header.Size = env.Header.Size
	return nil
}

// decodeFrame 完成从底层流到“消息头 + 业务明文字节”的解码流程。
//
// Pipeline：
//   framer.ReadFrame --> Envelope{Header+Payload} --> [decompress?]
func (c *codec) decodeFrame(r io.Reader) (*framer.Header, []byte, error) {
	if r == nil {
		return nil, nil, fmt.Errorf("codec: reader is nil")
	}

	env, err := c.framer.ReadFrame(r)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: read frame failed: %w", err)
	}

	header := env.Header
	data := env.Payload

	// 压缩 -> 解压。
	if header.Flags&framer.FlagCompressed != 0 {
		if !c.compress {
			return nil, nil, fmt.Errorf("codec: compressed payload but compression disabled")
		}
		if len(data) == 0 {
			return nil, nil, fmt.Errorf("codec: compressed payload is empty")
		}

		plain, err := c.compressor.Decompress(nil, data)
		if err != nil {
			return nil, nil, fmt.Errorf("codec: decompress failed: %w", err)
		}
		data = plain
	}

	return &header, data, nil
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) (*framer.Header, []byte, error) {
	return c.decodeFrame(r)
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, msg any) (*framer.Header, error) {
	header, data, err := c.decodeFrame(r)
	if err != nil {
		return nil, err
	}

	// 反序列化到业务对象。
	if msg != nil && len(data) > 0 {
		if err := c.serializer.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("codec: unmarshal failed: %w", err)
		}
	}

	return header, nil
}
