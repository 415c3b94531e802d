package mseed

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// rawRecord builds a 512-byte big-endian record around payload.
func rawRecord(t *testing.T, enc Encoding, n int, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 512)
	tr := &Trace{Network: "IA", Station: "PAFM", Channel: "BHZ", StartTime: windowStart, SampleRate: 100}
	writeFixedHeader(buf, tr, 1, 0, n, 100, 1, 64, true)
	writeBlockette1000(buf[fixedHeaderSize:], enc, 512, 0)
	require.LessOrEqual(t, len(payload), 512-64)
	copy(buf[64:], payload)
	return buf
}

func steimFrame(words ...uint32) []byte {
	frame := make([]byte, steimFrameSize)
	for i, w := range words {
		binary.BigEndian.PutUint32(frame[i*4:], w)
	}
	return frame
}

func TestDecode_Steim1(t *testing.T) {
	// samples 10 12 9 9 300: diffs [0 2 -3 0] as bytes, then 291 as a full word
	frame := steimFrame(
		1<<24|3<<22,
		10,
		300,
		0x0002FD00,
		291,
	)
	traces, err := Decode(rawRecord(t, EncodingSteim1, 5, frame))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, []float64{10, 12, 9, 9, 300}, traces[0].Data)
	require.Equal(t, EncodingSteim1, traces[0].Encoding)
	require.Equal(t, "IA.PAFM..BHZ", traces[0].ID())
	require.Equal(t, 100.0, traces[0].SampleRate)
	require.True(t, traces[0].StartTime.Equal(windowStart))
}

func TestDecode_Steim2(t *testing.T) {
	// samples 100 101 99 1000: three 10-bit diffs [0 1 -2], one 30-bit diff 901
	frame := steimFrame(
		2<<24|2<<22,
		100,
		1000,
		3<<30|0<<20|1<<10|0x3FE,
		1<<30|901,
	)
	traces, err := Decode(rawRecord(t, EncodingSteim2, 4, frame))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, []float64{100, 101, 99, 1000}, traces[0].Data)
}

func TestDecode_Steim2_SmallDifferences(t *testing.T) {
	// samples 0..6 with seven 4-bit diffs [0 1 1 1 1 1 1]
	var packed uint32 = 2 << 30
	diffs := []uint32{0, 1, 1, 1, 1, 1, 1}
	for i, d := range diffs {
		packed |= d << uint(4*(6-i))
	}
	frame := steimFrame(3<<24, 0, 6, packed)
	traces, err := Decode(rawRecord(t, EncodingSteim2, 7, frame))
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, traces[0].Data)
}

func TestDecode_Int16(t *testing.T) {
	payload := make([]byte, 6)
	for i, v := range []int16{-3, 0, 7} {
		binary.BigEndian.PutUint16(payload[i*2:], uint16(v))
	}
	traces, err := Decode(rawRecord(t, EncodingInt16, 3, payload))
	require.NoError(t, err)
	require.Equal(t, []float64{-3, 0, 7}, traces[0].Data)
}

func TestDecode_UnsupportedEncoding(t *testing.T) {
	_, err := Decode(rawRecord(t, Encoding(30), 3, nil))
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(bytes.Repeat([]byte("not seismic data "), 40))
	require.ErrorIs(t, err, ErrNotMiniSEED)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrNotMiniSEED)
}

func TestDecode_TruncatedRecord(t *testing.T) {
	rec := rawRecord(t, EncodingInt32, 10, make([]byte, 40))
	_, err := Decode(rec[:300])
	require.ErrorIs(t, err, ErrTruncatedRecord)
}

func TestDecode_RejectsImplausibleSampleRate(t *testing.T) {
	tr := &Trace{Network: "IA", Station: "PAFM", Channel: "BHZ", StartTime: windowStart, SampleRate: 20, Data: []float64{1, 2, 3}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{tr}, 512))

	rec := buf.Bytes()
	binary.BigEndian.PutUint16(rec[32:34], 0x7FFF)
	binary.BigEndian.PutUint16(rec[34:36], 0x7FFF)
	_, err := Decode(rec)
	require.ErrorIs(t, err, ErrNotMiniSEED)
}

func TestDecode_RejectsInfiniteBlockette100Rate(t *testing.T) {
	tr := &Trace{Network: "GE", Station: "SOEI", Channel: "HHN", StartTime: windowStart, SampleRate: 40.123, Data: []float64{1, 2, 3}}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{tr}, 512))

	rec := buf.Bytes()
	want := make([]byte, 4)
	binary.BigEndian.PutUint32(want, math.Float32bits(40.123))
	at := bytes.Index(rec, want)
	require.Positive(t, at)
	binary.BigEndian.PutUint32(rec[at:], math.Float32bits(float32(math.Inf(1))))

	_, err := Decode(rec)
	require.ErrorIs(t, err, ErrNotMiniSEED)
}

func TestDecode_TrailingPaddingIgnored(t *testing.T) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:], 5)
	binary.BigEndian.PutUint32(payload[4:], 6)
	data := append(rawRecord(t, EncodingInt32, 2, payload), make([]byte, 512)...)
	traces, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, []float64{5, 6}, traces[0].Data)
}

func TestDetectByteOrder(t *testing.T) {
	be := make([]byte, 4)
	binary.BigEndian.PutUint16(be[0:], 2024)
	binary.BigEndian.PutUint16(be[2:], 70)
	require.Equal(t, binary.BigEndian, detectByteOrder(be))

	le := make([]byte, 4)
	binary.LittleEndian.PutUint16(le[0:], 2024)
	binary.LittleEndian.PutUint16(le[2:], 70)
	require.Equal(t, binary.LittleEndian, detectByteOrder(le))

	require.Nil(t, detectByteOrder([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
}

func TestSampleRateFactors(t *testing.T) {
	require.Equal(t, 100.0, sampleRateFromFactors(100, 1))
	require.Equal(t, 0.1, sampleRateFromFactors(-10, 1))
	require.Equal(t, 0.25, sampleRateFromFactors(1, -4))
	require.Equal(t, 0.0, sampleRateFromFactors(0, 1))

	f, m, exact := factorsForSampleRate(40)
	require.True(t, exact)
	require.Equal(t, 40.0, sampleRateFromFactors(f, m))

	f, m, exact = factorsForSampleRate(0.5)
	require.True(t, exact)
	require.Equal(t, 0.5, sampleRateFromFactors(f, m))

	_, _, exact = factorsForSampleRate(40.123)
	require.False(t, exact)
}

func TestEncodeDecode_RoundTripJoinsRecords(t *testing.T) {
	data := make([]float64, 2500)
	for i := range data {
		data[i] = float64((i*37)%2001 - 1000)
	}
	tr := &Trace{
		Network: "IA", Station: "PAFM", Location: "00", Channel: "BHZ",
		Quality: 'D', StartTime: windowStart, SampleRate: 100,
		Encoding: EncodingSteim2, Data: data,
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{tr}, DefaultRecordLength))
	require.Equal(t, 3*DefaultRecordLength, buf.Len())

	traces, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, traces, 1)
	got := traces[0]
	require.Equal(t, "IA.PAFM.00.BHZ", got.ID())
	require.Equal(t, EncodingInt32, got.Encoding)
	require.Equal(t, 100.0, got.SampleRate)
	require.True(t, got.StartTime.Equal(windowStart))
	require.Equal(t, data, got.Data)
}

func TestEncodeDecode_FloatAndInexactRate(t *testing.T) {
	tr := &Trace{
		Network: "GE", Station: "SOEI", Channel: "HHN",
		StartTime: windowStart, SampleRate: 40.123,
		Encoding: EncodingFloat64, Data: []float64{0.5, -1.25, 3.125},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{tr}, 512))

	traces, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, EncodingFloat64, traces[0].Encoding)
	require.InDelta(t, 40.123, traces[0].SampleRate, 1e-4)
	require.Equal(t, tr.Data, traces[0].Data)
}

func TestEncodeDecode_ChannelsKeepFirstAppearanceOrder(t *testing.T) {
	z := ramp("PAFM", windowStart, 30)
	n := ramp("PAFM", windowStart, 30)
	n.Channel = "BHN"
	other := ramp("ALRB", windowStart, 30)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{z, n, other}, 512))

	traces, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, traces, 3)
	require.Equal(t, "IA.PAFM..BHZ", traces[0].ID())
	require.Equal(t, "IA.PAFM..BHN", traces[1].ID())
	require.Equal(t, "IA.ALRB..BHZ", traces[2].ID())
}

func TestEncodeDecode_GapStartsNewTrace(t *testing.T) {
	a := ramp("PAFM", windowStart, 30)
	b := ramp("PAFM", windowStart.Add(time.Minute), 30)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{a, b}, 512))

	traces, err := Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, traces, 2)
	require.True(t, traces[1].StartTime.Equal(windowStart.Add(time.Minute)))
}

func TestEncode_SkipsEmptyAndRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []*Trace{{Station: "PAFM", SampleRate: 1}}, 512))
	require.Zero(t, buf.Len())

	err := Write(&buf, []*Trace{{Station: "PAFM", Data: []float64{1}}}, 512)
	require.Error(t, err)

	_, err = NewEncoder(&buf, 1000)
	require.Error(t, err)
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024", "event.mseed")
	tr := ramp("PAFM", windowStart, 361)

	require.NoError(t, WriteFile(path, []*Trace{tr}))

	traces, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Equal(t, tr.Data, traces[0].Data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file should be renamed away")
}

func TestReadFile_Unreadable(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.mseed")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := ReadFile(empty)
	require.ErrorIs(t, err, ErrNotMiniSEED)

	text := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(text, bytes.Repeat([]byte("station list\n"), 20), 0o644))
	_, err = ReadFile(text)
	require.ErrorIs(t, err, ErrNotMiniSEED)

	_, err = ReadFile(dir)
	require.ErrorIs(t, err, ErrNotMiniSEED)

	_, err = ReadFile(filepath.Join(dir, "missing"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
