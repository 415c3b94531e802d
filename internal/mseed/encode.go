package mseed

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// DefaultRecordLength is the record size used by WriteFile.
const DefaultRecordLength = 4096

const (
	blockette1000Size = 8
	maxSequence       = 999999
)

// Encoder writes traces as big-endian miniSEED records.
type Encoder struct {
	w            io.Writer
	recordLength int
	sequence     int
}

// NewEncoder returns an Encoder writing records of recordLength bytes.
// recordLength must be a power of two between 256 and 1 MiB.
func NewEncoder(w io.Writer, recordLength int) (*Encoder, error) {
	if recordLength < 256 || recordLength > 1<<maxRecordExponent || recordLength&(recordLength-1) != 0 {
		return nil, fmt.Errorf("invalid record length %d", recordLength)
	}
	return &Encoder{w: w, recordLength: recordLength}, nil
}

// Encode writes every sample of tr. Integer traces are stored as INT32,
// FLOAT32 traces as FLOAT32 and everything else as FLOAT64. Empty traces
// produce no records.
func (e *Encoder) Encode(tr *Trace) error {
	if len(tr.Data) == 0 {
		return nil
	}
	if tr.SampleRate <= 0 {
		return fmt.Errorf("encode %s: invalid sample rate %v", tr.ID(), tr.SampleRate)
	}

	encoding := outputEncoding(tr.Encoding)
	factor, multiplier, exact := factorsForSampleRate(tr.SampleRate)

	dataOffset := 64
	if !exact {
		dataOffset = 128
	}
	width := sampleWidth(encoding)
	perRecord := (e.recordLength - dataOffset) / width

	buf := make([]byte, e.recordLength)
	for first := 0; first < len(tr.Data); first += perRecord {
		last := min(first+perRecord, len(tr.Data))
		clear(buf)

		e.sequence = e.sequence%maxSequence + 1
		writeFixedHeader(buf, tr, e.sequence, first, last-first, factor, multiplier, dataOffset, exact)
		next := 0
		if !exact {
			next = fixedHeaderSize + blockette1000Size
		}
		writeBlockette1000(buf[fixedHeaderSize:], encoding, e.recordLength, next)
		if !exact {
			writeBlockette100(buf[fixedHeaderSize+blockette1000Size:], tr.SampleRate)
		}
		writeSamples(buf[dataOffset:], tr.Data[first:last], encoding)

		if _, err := e.w.Write(buf); err != nil {
			return fmt.Errorf("write record %d of %s: %w", e.sequence, tr.ID(), err)
		}
	}
	return nil
}

// Write encodes traces to w in order.
func Write(w io.Writer, traces []*Trace, recordLength int) error {
	enc, err := NewEncoder(w, recordLength)
	if err != nil {
		return err
	}
	for _, tr := range traces {
		if err := enc.Encode(tr); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes traces to path, creating parent directories. The file
// is written to a temporary name first and renamed into place.
func WriteFile(path string, traces []*Trace) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".wavecut.mseed.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	bw := bufio.NewWriter(temp)
	if err := Write(bw, traces, DefaultRecordLength); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func outputEncoding(src Encoding) Encoding {
	switch {
	case src.Integer():
		return EncodingInt32
	case src == EncodingFloat32:
		return EncodingFloat32
	default:
		return EncodingFloat64
	}
}

func sampleWidth(enc Encoding) int {
	if enc == EncodingFloat64 {
		return 8
	}
	return 4
}

func writeFixedHeader(buf []byte, tr *Trace, seq, first, count int, factor, multiplier int16, dataOffset int, exact bool) {
	order := binary.BigEndian
	copy(buf[0:6], fmt.Sprintf("%06d", seq))
	quality := tr.Quality
	if !validQuality(quality) {
		quality = 'D'
	}
	buf[6] = quality
	buf[7] = ' '
	copy(buf[8:13], padField(tr.Station, 5))
	copy(buf[13:15], padField(tr.Location, 2))
	copy(buf[15:18], padField(tr.Channel, 3))
	copy(buf[18:20], padField(tr.Network, 2))
	encodeBTime(buf[20:30], tr.SampleTime(first), order)
	order.PutUint16(buf[30:32], uint16(count))
	order.PutUint16(buf[32:34], uint16(factor))
	order.PutUint16(buf[34:36], uint16(multiplier))
	blockettes := 1
	if !exact {
		blockettes = 2
	}
	buf[39] = byte(blockettes)
	order.PutUint16(buf[44:46], uint16(dataOffset))
	order.PutUint16(buf[46:48], fixedHeaderSize)
}

func writeBlockette1000(buf []byte, enc Encoding, recordLength, next int) {
	binary.BigEndian.PutUint16(buf[0:2], 1000)
	binary.BigEndian.PutUint16(buf[2:4], uint16(next))
	buf[4] = byte(enc)
	buf[5] = 1 // big-endian
	exp := 0
	for 1<<exp < recordLength {
		exp++
	}
	buf[6] = byte(exp)
}

// writeBlockette100 carries a sample rate that factor/multiplier cannot
// represent.
func writeBlockette100(buf []byte, rate float64) {
	binary.BigEndian.PutUint16(buf[0:2], 100)
	binary.BigEndian.PutUint16(buf[2:4], 0)
	binary.BigEndian.PutUint32(buf[4:8], math.Float32bits(float32(rate)))
}

func writeSamples(buf []byte, data []float64, enc Encoding) {
	order := binary.BigEndian
	switch enc {
	case EncodingInt32:
		for i, v := range data {
			order.PutUint32(buf[i*4:], uint32(clampInt32(v)))
		}
	case EncodingFloat32:
		for i, v := range data {
			order.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	default:
		for i, v := range data {
			order.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}
}

func clampInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(math.Round(v))
	}
}

func padField(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
