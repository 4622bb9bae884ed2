package varint

import (
	"fmt"

	"github.com/flashpack/corepack"
)

// bytesPerArg bounds the estimated size of the scratch buffer Pack
// allocates: at most 10 bytes for a vuint/vint plus headroom for a few
// short strings before the estimate would need to grow.
const bytesPerArg = 20

// Pack implements the restricted tuple packer described by fmt, a
// string over {'V', 'v', 's'}:
//
//	V - an unsigned vuint of an integer argument
//	v - a signed vint of an integer argument
//	s - a vuint length prefix followed by the raw bytes of a []byte argument
//
// len(args) must equal len(fmt). Pack fails with an overflow error if the
// scratch buffer (sized bytesPerArg*len(fmt)) would be exceeded; callers
// are expected to keep elements small.
func Pack(format string, args []any) ([]byte, error) {
	if len(args) != len(format) {
		return nil, fmt.Errorf("varint: %d arguments do not match format %q", len(args), format)
	}

	limit := len(format) * bytesPerArg
	buf := make([]byte, 0, limit)

	for i, c := range []byte(format) {
		switch c {
		case 'V':
			v, err := asInt64(args[i])
			if err != nil {
				return nil, fmt.Errorf("varint: pack arg %d: %w", i, err)
			}
			next, err := EncodeUint(buf, v)
			if err != nil {
				return nil, fmt.Errorf("varint: pack arg %d: %w", i, err)
			}
			if len(next) > limit {
				return nil, &corepack.OverflowError{What: "varint: pack buffer overflow"}
			}
			buf = next
		case 'v':
			v, err := asInt64(args[i])
			if err != nil {
				return nil, fmt.Errorf("varint: pack arg %d: %w", i, err)
			}
			buf = EncodeInt(buf, v)
			if len(buf) > limit {
				return nil, &corepack.OverflowError{What: "varint: pack buffer overflow"}
			}
		case 's':
			b, ok := args[i].([]byte)
			if !ok {
				return nil, fmt.Errorf("varint: pack arg %d must be []byte for format 's'", i)
			}
			next, err := EncodeUint(buf, int64(len(b)))
			if err != nil {
				return nil, fmt.Errorf("varint: pack arg %d: %w", i, err)
			}
			if len(next)+len(b) > limit {
				return nil, &corepack.OverflowError{What: "varint: pack buffer overflow"}
			}
			buf = append(next, b...)
		default:
			return nil, fmt.Errorf("varint: unknown pack format character %q", c)
		}
	}

	return buf, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("argument of type %T is not an integer", v)
	}
}
