package mseed

import (
	"encoding/binary"
	"fmt"

	"github.com/zjrosen/wavecut/internal/log"
)

const (
	steimFrameSize  = 64
	steimFrameWords = 16
)

// decodeSteim decompresses Steim1 or Steim2 frames into n samples.
func decodeSteim(data []byte, n int, level int, order binary.ByteOrder) ([]int32, error) {
	if n == 0 {
		return []int32{}, nil
	}
	frames := len(data) / steimFrameSize
	if frames == 0 {
		return nil, fmt.Errorf("steim%d: no frames for %d samples", level, n)
	}

	diffs := make([]int32, 0, n)
	var x0, xn int32
	for f := 0; f < frames && len(diffs) < n; f++ {
		frame := data[f*steimFrameSize : (f+1)*steimFrameSize]
		nibbles := order.Uint32(frame[0:4])
		for w := 1; w < steimFrameWords; w++ {
			word := order.Uint32(frame[w*4 : w*4+4])
			nib := (nibbles >> (30 - 2*uint(w))) & 0x3
			if f == 0 && w == 1 {
				x0 = int32(word)
				continue
			}
			if f == 0 && w == 2 {
				xn = int32(word)
				continue
			}
			var err error
			if level == 1 {
				diffs = appendSteim1(diffs, nib, word)
			} else {
				diffs, err = appendSteim2(diffs, nib, word)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if len(diffs) < n {
		return nil, fmt.Errorf("steim%d: decoded %d of %d samples", level, len(diffs), n)
	}

	out := make([]int32, n)
	out[0] = x0
	for i := 1; i < n; i++ {
		out[i] = out[i-1] + diffs[i]
	}
	if out[n-1] != xn {
		log.Warn(log.CatMSEED, "steim integrity check failed", "level", level, "last", out[n-1], "expected", xn)
	}
	return out, nil
}

func appendSteim1(diffs []int32, nib uint32, word uint32) []int32 {
	switch nib {
	case 1:
		for i := 0; i < 4; i++ {
			diffs = append(diffs, int32(int8(word>>(24-8*uint(i)))))
		}
	case 2:
		diffs = append(diffs, int32(int16(word>>16)), int32(int16(word)))
	case 3:
		diffs = append(diffs, int32(word))
	}
	return diffs
}

func appendSteim2(diffs []int32, nib uint32, word uint32) ([]int32, error) {
	dnib := word >> 30
	switch nib {
	case 0:
		return diffs, nil
	case 1:
		for i := 0; i < 4; i++ {
			diffs = append(diffs, int32(int8(word>>(24-8*uint(i)))))
		}
		return diffs, nil
	case 2:
		switch dnib {
		case 1:
			return append(diffs, signExtend(word, 30)), nil
		case 2:
			return appendPacked(diffs, word, 2, 15), nil
		case 3:
			return appendPacked(diffs, word, 3, 10), nil
		}
	case 3:
		switch dnib {
		case 0:
			return appendPacked(diffs, word, 5, 6), nil
		case 1:
			return appendPacked(diffs, word, 6, 5), nil
		case 2:
			return appendPacked(diffs, word, 7, 4), nil
		}
	}
	return nil, fmt.Errorf("steim2: invalid nibble %d/dnib %d", nib, dnib)
}

// appendPacked unpacks count bits-wide differences stored right-aligned in
// the low 30 bits of word, most significant first.
func appendPacked(diffs []int32, word uint32, count, bits int) []int32 {
	for i := count - 1; i >= 0; i-- {
		diffs = append(diffs, signExtend(word>>(uint(i*bits)), bits))
	}
	return diffs
}

func signExtend(v uint32, bits int) int32 {
	shift := 32 - uint(bits)
	return int32(v<<shift) >> shift
}
