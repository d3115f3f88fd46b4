package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	binpkg "github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
)

// deflate chunks are zlib streams.
type deflate struct{}

func (deflate) ID() uint16 { return message.FilterDeflate }

func (deflate) Decode(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out bytes.Buffer
	out.Grow(4 * len(in))
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// shuffle stores byte k of every element together, k = 0..size-1.
type shuffle struct{ size int }

func newShuffle(cd []uint32) Filter {
	s := shuffle{size: 1}
	if len(cd) > 0 && cd[0] > 0 {
		s.size = int(cd[0])
	}
	return s
}

func (shuffle) ID() uint16 { return message.FilterShuffle }

func (s shuffle) Decode(in []byte) ([]byte, error) {
	n := len(in) / s.size
	if s.size <= 1 || n == 0 {
		return in, nil
	}
	out := make([]byte, len(in))
	for k := 0; k < s.size; k++ {
		plane := in[k*n : (k+1)*n]
		for e, b := range plane {
			out[e*s.size+k] = b
		}
	}
	// a partial trailing element is stored unshuffled
	copy(out[n*s.size:], in[n*s.size:])
	return out, nil
}

// fletcher32 strips and checks the trailing checksum. Old libraries summed
// byte swapped words, so that variant is accepted too.
type fletcher32 struct{}

func (fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (fletcher32) Decode(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes is too short", len(in))
	}
	data, sum := in[:len(in)-4], binary.LittleEndian.Uint32(in[len(in)-4:])
	if got := binpkg.Fletcher32(data); got != sum && swapWords(got) != sum {
		return nil, fmt.Errorf("fletcher32: checksum %#08x, stored %#08x", got, sum)
	}
	return data, nil
}

func swapWords(v uint32) uint32 {
	return (v&0x00ff00ff)<<8 | (v&0xff00ff00)>>8
}
