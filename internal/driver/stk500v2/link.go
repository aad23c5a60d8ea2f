// internal/driver/stk500v2/link.go
package stk500v2

import (
	"context"
	"errors"
	"fmt"
	"time"

	"device-programmer/internal/transport"
)

var (
	ErrTimeout  = errors.New("no answer from programmer")
	ErrChecksum = errors.New("message checksum mismatch")
	ErrSequence = errors.New("message sequence mismatch")
)

// DefaultAnswerTimeout bounds the wait for a single answer
const DefaultAnswerTimeout = 2 * time.Second

// link exchanges one command body for one answer body
type link interface {
	exchange(ctx context.Context, body []byte) ([]byte, error)
}

// framedLink wraps bodies in STK500v2 messages, as spoken over serial and TCP
type framedLink struct {
	transport transport.Transport
	sequence  byte
	timeout   time.Duration
}

func newFramedLink(t transport.Transport) *framedLink {
	return &framedLink{transport: t, timeout: DefaultAnswerTimeout}
}

func (l *framedLink) exchange(ctx context.Context, body []byte) ([]byte, error) {
	message, err := encodeMessage(l.sequence, body)
	if err != nil {
		return nil, err
	}
	if err := l.transport.Write(ctx, message); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var buffer []byte
	for {
		chunk, err := l.transport.Read(ctx, headerSize+maxBodySize+1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTimeout
			}
			return nil, err
		}
		buffer = append(buffer, chunk...)

		sequence, answer, rest, complete, err := decodeMessage(buffer)
		if err != nil {
			return nil, err
		}
		if complete {
			if sequence != l.sequence {
				return nil, fmt.Errorf("%w: sent %d, got %d", ErrSequence, l.sequence, sequence)
			}
			if len(rest) > 0 {
				return nil, fmt.Errorf("unexpected %d trailing bytes after answer", len(rest))
			}
			l.sequence++
			return answer, nil
		}

		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
	}
}

// encodeMessage builds start, sequence, size, token, body and checksum
func encodeMessage(sequence byte, body []byte) ([]byte, error) {
	if len(body) == 0 || len(body) > maxBodySize {
		return nil, fmt.Errorf("invalid message body size %d", len(body))
	}

	message := make([]byte, 0, headerSize+len(body)+1)
	message = append(message,
		messageStart,
		sequence,
		byte(len(body)>>8),
		byte(len(body)),
		messageToken,
	)
	message = append(message, body...)
	message = append(message, checksum(message))
	return message, nil
}

// decodeMessage parses one message from the front of buffer. Bytes before a
// start marker are skipped. complete is false while more bytes are needed.
func decodeMessage(buffer []byte) (sequence byte, body, rest []byte, complete bool, err error) {
	for len(buffer) > 0 && buffer[0] != messageStart {
		buffer = buffer[1:]
	}
	if len(buffer) < headerSize {
		return 0, nil, nil, false, nil
	}
	if buffer[4] != messageToken {
		return 0, nil, nil, false, fmt.Errorf("invalid message token 0x%02X", buffer[4])
	}

	size := int(buffer[2])<<8 | int(buffer[3])
	if size > maxBodySize {
		return 0, nil, nil, false, fmt.Errorf("invalid message body size %d", size)
	}
	total := headerSize + size + 1
	if len(buffer) < total {
		return 0, nil, nil, false, nil
	}

	if checksum(buffer[:total-1]) != buffer[total-1] {
		return 0, nil, nil, false, ErrChecksum
	}

	body = make([]byte, size)
	copy(body, buffer[headerSize:total-1])
	return buffer[1], body, buffer[total:], true, nil
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// rawLink sends bare bodies, one bulk transfer each way, as the AVRISP mkII does
type rawLink struct {
	transport transport.Transport
}

func (l *rawLink) exchange(ctx context.Context, body []byte) ([]byte, error) {
	if err := l.transport.Write(ctx, body); err != nil {
		return nil, err
	}

	answer, err := l.transport.Read(ctx, maxBodySize)
	if err != nil {
		return nil, err
	}
	if len(answer) == 0 {
		return nil, ErrTimeout
	}
	return answer, nil
}
