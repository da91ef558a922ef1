package httpcodec

// Bounds enforced by Parser. Exceeding any of these yields a ProtocolError
// and the gateway closes the connection.
const (
	MaxURLLength      = 8 * 1024
	MaxHeaderKeyLen   = 256
	MaxHeaderValueLen = 8 * 1024
	MaxHeaderCount    = 100
	MaxBodyLength     = 10 * 1024 * 1024
)
