package mseed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrNotMiniSEED         = errors.New("not a miniSEED record")
	ErrUnsupportedEncoding = errors.New("unsupported data encoding")
	ErrNoBlockette1000     = errors.New("record has no blockette 1000")
	ErrTruncatedRecord     = errors.New("truncated record")
)

const (
	fixedHeaderSize = 48

	minRecordExponent = 7  // 128 bytes
	maxRecordExponent = 20 // 1 MiB

	activityTimeCorrectionApplied = 0x02

	// MaxSampleRate bounds the rates accepted from a record header.
	MaxSampleRate = 1e5
)

// recordHeader is the decoded fixed section of a data record plus the
// blockette fields needed to interpret its payload.
type recordHeader struct {
	sequence     string
	quality      byte
	station      string
	location     string
	channel      string
	network      string
	start        time.Time
	numSamples   int
	sampleRate   float64
	activity     byte
	blockettes   int
	correction   int32
	dataOffset   int
	firstBlkt    int
	encoding     Encoding
	order        binary.ByteOrder // header and blockettes
	dataOrder    binary.ByteOrder // payload, from blockette 1000
	recordLength int
}

func (h *recordHeader) id() string {
	return h.network + "." + h.station + "." + h.location + "." + h.channel
}

// parseHeader decodes the fixed header and blockette chain at the front of
// buf. buf may extend past the record; recordLength tells the caller where
// the next record starts.
func parseHeader(buf []byte) (*recordHeader, error) {
	if len(buf) < fixedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedRecord, len(buf))
	}
	if !validSequence(buf[0:6]) || !validQuality(buf[6]) || (buf[7] != ' ' && buf[7] != 0) {
		return nil, ErrNotMiniSEED
	}

	order := detectByteOrder(buf[20:24])
	if order == nil {
		return nil, fmt.Errorf("%w: implausible start time", ErrNotMiniSEED)
	}

	h := &recordHeader{
		sequence:  string(buf[0:6]),
		quality:   buf[6],
		station:   trimField(buf[8:13]),
		location:  trimField(buf[13:15]),
		channel:   trimField(buf[15:18]),
		network:   trimField(buf[18:20]),
		order:     order,
		dataOrder: order,
	}
	start, err := decodeBTime(buf[20:30], order)
	if err != nil {
		return nil, err
	}
	h.start = start
	h.numSamples = int(order.Uint16(buf[30:32]))
	factor := int16(order.Uint16(buf[32:34]))
	multiplier := int16(order.Uint16(buf[34:36]))
	h.sampleRate = sampleRateFromFactors(factor, multiplier)
	h.activity = buf[36]
	h.blockettes = int(buf[39])
	h.correction = int32(order.Uint32(buf[40:44]))
	h.dataOffset = int(order.Uint16(buf[44:46]))
	h.firstBlkt = int(order.Uint16(buf[46:48]))

	if err := h.readBlockettes(buf); err != nil {
		return nil, err
	}

	if h.activity&activityTimeCorrectionApplied == 0 && h.correction != 0 {
		h.start = h.start.Add(time.Duration(h.correction) * 100 * time.Microsecond)
	}
	if h.recordLength == 0 {
		return nil, ErrNoBlockette1000
	}
	if math.IsNaN(h.sampleRate) || h.sampleRate < 0 || h.sampleRate > MaxSampleRate {
		return nil, fmt.Errorf("%w: sample rate %g Hz", ErrNotMiniSEED, h.sampleRate)
	}
	if h.dataOffset < fixedHeaderSize || h.dataOffset > h.recordLength {
		return nil, fmt.Errorf("%w: data offset %d outside record of %d bytes", ErrNotMiniSEED, h.dataOffset, h.recordLength)
	}
	if len(buf) < h.recordLength {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedRecord, h.recordLength, len(buf))
	}
	return h, nil
}

func (h *recordHeader) readBlockettes(buf []byte) error {
	offset := h.firstBlkt
	for i := 0; i < h.blockettes && offset != 0; i++ {
		if offset < fixedHeaderSize || offset+4 > len(buf) {
			return fmt.Errorf("%w: blockette offset %d", ErrNotMiniSEED, offset)
		}
		kind := h.order.Uint16(buf[offset : offset+2])
		next := int(h.order.Uint16(buf[offset+2 : offset+4]))
		switch kind {
		case 1000:
			if offset+8 > len(buf) {
				return fmt.Errorf("%w: blockette 1000", ErrTruncatedRecord)
			}
			h.encoding = Encoding(buf[offset+4])
			if buf[offset+5] == 0 {
				h.dataOrder = binary.LittleEndian
			} else {
				h.dataOrder = binary.BigEndian
			}
			exp := int(buf[offset+6])
			if exp < minRecordExponent || exp > maxRecordExponent {
				return fmt.Errorf("%w: record length exponent %d", ErrNotMiniSEED, exp)
			}
			h.recordLength = 1 << exp
		case 100:
			if offset+8 > len(buf) {
				return fmt.Errorf("%w: blockette 100", ErrTruncatedRecord)
			}
			rate := math.Float32frombits(h.order.Uint32(buf[offset+4 : offset+8]))
			if rate > 0 {
				h.sampleRate = float64(rate)
			}
		}
		if next != 0 && next <= offset {
			return fmt.Errorf("%w: blockette chain loops at %d", ErrNotMiniSEED, offset)
		}
		offset = next
	}
	return nil
}

func validSequence(b []byte) bool {
	for _, c := range b {
		if (c < '0' || c > '9') && c != ' ' && c != 0 {
			return false
		}
	}
	return true
}

func validQuality(c byte) bool {
	return c == 'D' || c == 'R' || c == 'Q' || c == 'M'
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// detectByteOrder uses the BTIME year and day to tell header byte order.
func detectByteOrder(b []byte) binary.ByteOrder {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		year := order.Uint16(b[0:2])
		day := order.Uint16(b[2:4])
		if year >= 1900 && year <= 2100 && day >= 1 && day <= 366 {
			return order
		}
	}
	return nil
}

// decodeBTime reads a SEED BTIME (10 bytes).
func decodeBTime(b []byte, order binary.ByteOrder) (time.Time, error) {
	year := int(order.Uint16(b[0:2]))
	day := int(order.Uint16(b[2:4]))
	hour, minute, sec := int(b[4]), int(b[5]), int(b[6])
	fract := int(order.Uint16(b[8:10]))
	if hour > 23 || minute > 59 || sec > 60 || fract > 9999 {
		return time.Time{}, fmt.Errorf("%w: invalid start time", ErrNotMiniSEED)
	}
	t := time.Date(year, time.January, 1, hour, minute, sec, fract*100000, time.UTC)
	return t.AddDate(0, 0, day-1), nil
}

// encodeBTime writes t as a SEED BTIME. Precision is 100 microseconds.
func encodeBTime(b []byte, t time.Time, order binary.ByteOrder) {
	t = t.UTC()
	order.PutUint16(b[0:2], uint16(t.Year()))
	order.PutUint16(b[2:4], uint16(t.YearDay()))
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
	b[7] = 0
	order.PutUint16(b[8:10], uint16(t.Nanosecond()/100000))
}

func sampleRateFromFactors(factor, multiplier int16) float64 {
	f, m := float64(factor), float64(multiplier)
	switch {
	case factor == 0 || multiplier == 0:
		return 0
	case factor > 0 && multiplier > 0:
		return f * m
	case factor > 0 && multiplier < 0:
		return -f / m
	case factor < 0 && multiplier > 0:
		return -m / f
	default:
		return 1 / (f * m)
	}
}

// factorsForSampleRate returns factor/multiplier for rate and whether they
// represent it exactly. Inexact rates are carried in blockette 100.
func factorsForSampleRate(rate float64) (int16, int16, bool) {
	if rate <= 0 {
		return 0, 0, true
	}
	if rate >= 1 {
		if r := math.Round(rate); r == rate && r <= math.MaxInt16 {
			return int16(r), 1, true
		}
		scaled := math.Round(rate * 100)
		if scaled <= math.MaxInt16 {
			return int16(scaled), -100, scaled/100 == rate
		}
		return math.MaxInt16, 1, false
	}
	period := 1 / rate
	if p := math.Round(period); p == period && p <= math.MaxInt16 {
		return -int16(p), 1, true
	}
	p := math.Min(math.Round(period), math.MaxInt16)
	return -int16(p), 1, false
}
