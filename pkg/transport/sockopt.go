package transport

const (
	defaultBufferSize = 64 << 10
	minBufferSize     = 4 << 10
	maxBufferSize     = 4 << 20
)

func clampBuffer(v int) int {
	switch {
	case v < minBufferSize:
		return minBufferSize
	case v > maxBufferSize:
		return maxBufferSize
	}
	return v
}
