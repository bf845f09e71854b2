package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer 是可复用的字节缓冲区类型别名。
//
// 统一封装 valyala/bytebufferpool，调用方不直接依赖第三方包。
type ByteBuffer = bytebufferpool.ByteBuffer

// Get 从池中取出一个空的 ByteBuffer。
func Get() *ByteBuffer {
	return bytebufferpool.Get()
}

// Put 将 ByteBuffer 归还到池中。
// 归还后调用方不得再持有或使用该缓冲区。
func Put(b *ByteBuffer) {
	bytebufferpool.Put(b)
}
