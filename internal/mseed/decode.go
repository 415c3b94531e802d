package mseed

import (
	"fmt"
	"math"
	"time"
)

// Decode parses every record in data and returns the traces they form.
// Records of the same channel that continue the previous segment without a
// gap are joined into one trace. Traces are returned in order of first
// appearance.
func Decode(data []byte) ([]*Trace, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNotMiniSEED)
	}

	var traces []*Trace
	offset := 0
	for offset < len(data) {
		if isPadding(data[offset:]) {
			break
		}
		h, err := parseHeader(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		samples, err := decodePayload(h, data[offset+h.dataOffset:offset+h.recordLength])
		if err != nil {
			return nil, fmt.Errorf("record %s at offset %d: %w", h.id(), offset, err)
		}
		traces = appendRecord(traces, h, samples)
		offset += h.recordLength
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("%w: no data records", ErrNotMiniSEED)
	}
	return traces, nil
}

// isPadding reports whether the remainder is zero-filled space after the
// last record, which some writers emit to round files up.
func isPadding(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// appendRecord merges a decoded record into the trace list.
func appendRecord(traces []*Trace, h *recordHeader, samples []float64) []*Trace {
	id := h.id()
	for i := len(traces) - 1; i >= 0; i-- {
		tr := traces[i]
		if tr.ID() != id || tr.SampleRate != h.sampleRate {
			continue
		}
		if contiguous(tr, h.start) {
			tr.Data = append(tr.Data, samples...)
			return traces
		}
	}
	return append(traces, &Trace{
		Network:    h.network,
		Station:    h.station,
		Location:   h.location,
		Channel:    h.channel,
		Quality:    h.quality,
		StartTime:  h.start,
		SampleRate: h.sampleRate,
		Encoding:   h.encoding,
		Data:       samples,
	})
}

// contiguous reports whether next starts one sample after tr ends, within
// half a sample.
func contiguous(tr *Trace, next time.Time) bool {
	if tr.SampleRate <= 0 || len(tr.Data) == 0 {
		return false
	}
	expected := tr.SampleTime(len(tr.Data))
	diff := next.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tr.Delta()/2
}

func decodePayload(h *recordHeader, payload []byte) ([]float64, error) {
	n := h.numSamples
	order := h.dataOrder
	out := make([]float64, n)

	need := func(width int) error {
		if len(payload) < n*width {
			return fmt.Errorf("%w: %d samples of %d bytes in %d byte payload", ErrTruncatedRecord, n, width, len(payload))
		}
		return nil
	}

	switch h.encoding {
	case EncodingInt16:
		if err := need(2); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = float64(int16(order.Uint16(payload[i*2:])))
		}
	case EncodingInt32:
		if err := need(4); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = float64(int32(order.Uint32(payload[i*4:])))
		}
	case EncodingFloat32:
		if err := need(4); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(payload[i*4:])))
		}
	case EncodingFloat64:
		if err := need(8); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(payload[i*8:]))
		}
	case EncodingSteim1, EncodingSteim2:
		level := 1
		if h.encoding == EncodingSteim2 {
			level = 2
		}
		ints, err := decodeSteim(payload, n, level, order)
		if err != nil {
			return nil, err
		}
		for i, v := range ints {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, h.encoding)
	}
	return out, nil
}
