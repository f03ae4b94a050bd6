// Package jpegquality estimates the quality setting a JPEG stream was
// encoded with by reading its quantization tables. The estimate drives
// re-encoding decisions, recompressing at a quality above the source only
// grows the file without adding detail.
package jpegquality

import (
	"bytes"
	"errors"
	"io"
)

var (
	ErrInvalidJPEG  = errors.New("invalid JPEG header")
	ErrWrongTable   = errors.New("wrong size for quantization table")
	ErrShortSegment = errors.New("short segment length")
	ErrShortDQT     = errors.New("section DQT is too short")
)

// Base quantization tables from Annex K of the JPEG standard. Encoders
// following the IJG convention scale these by the quality setting, so the
// scale factor can be recovered from the coded values.
var (
	baseLuminance = [64]int{
		16, 11, 10, 16, 24, 40, 51, 61,
		12, 12, 14, 19, 26, 58, 60, 55,
		14, 13, 16, 24, 40, 57, 69, 56,
		14, 17, 22, 29, 51, 87, 80, 62,
		18, 22, 37, 56, 68, 109, 103, 77,
		24, 35, 55, 64, 81, 104, 113, 92,
		49, 64, 78, 87, 103, 121, 120, 101,
		72, 92, 95, 98, 112, 100, 103, 99,
	}
	baseChrominance = [64]int{
		17, 18, 24, 47, 99, 99, 99, 99,
		18, 21, 26, 66, 99, 99, 99, 99,
		24, 26, 56, 99, 99, 99, 99, 99,
		47, 66, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	}
)

type jpegReader struct {
	rs io.ReadSeeker
	q  int
}

// New reads enough of the stream to locate the quantization tables and
// estimate encoding quality. The reader is rewound first so repeated calls
// on the same stream work.
func New(rs io.ReadSeeker) (*jpegReader, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	jr := &jpegReader{rs: rs}

	sign := make([]byte, 2)
	if _, err := io.ReadFull(jr.rs, sign); err != nil {
		return nil, err
	}
	if sign[0] != 0xff || sign[1] != 0xd8 {
		return nil, ErrInvalidJPEG
	}

	q, err := jr.readQuality()
	if err != nil {
		return nil, err
	}
	jr.q = q
	return jr, nil
}

// NewWithBytes is like New for in-memory JPEG data.
func NewWithBytes(buf []byte) (*jpegReader, error) {
	return New(bytes.NewReader(buf))
}

// Quality returns the estimated encoder quality setting on the usual 1 to
// 100 scale.
func (jr *jpegReader) Quality() int {
	return jr.q
}

// readMarker returns the next two stream bytes as a marker value or 0 when
// the stream ends or desynchronizes.
func (jr *jpegReader) readMarker() int {
	mark := make([]byte, 2)
	for {
		if _, err := io.ReadFull(jr.rs, mark); err != nil {
			return 0
		}
		if mark[0] == 0xff && mark[1] != 0xff && mark[1] != 0x00 {
			return int(mark[0])<<8 | int(mark[1])
		}
		// fill byte or stuffed 0xff, resync one byte forward
		if _, err := jr.rs.Seek(-1, io.SeekCurrent); err != nil {
			return 0
		}
	}
}

// readSectionLength returns the payload length of the current section, the
// two length bytes already removed.
func (jr *jpegReader) readSectionLength() (int, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(jr.rs, buf); err != nil {
		return 0, ErrShortSegment
	}
	length := int(buf[0])<<8 | int(buf[1])
	if length < 2 {
		return 0, ErrShortSegment
	}
	return length - 2, nil
}

// readQuality scans sections up to the scan data looking for DQT tables.
func (jr *jpegReader) readQuality() (int, error) {
	var (
		estimates []int
		found     bool
	)
	for {
		mark := jr.readMarker()
		switch mark {
		case 0:
			return 0, ErrInvalidJPEG
		case 0xffd9, 0xffda: // EOI, SOS - tables precede scan data
			if !found {
				return 0, ErrShortDQT
			}
			return average(estimates), nil
		}

		length, err := jr.readSectionLength()
		if err != nil {
			return 0, err
		}

		if mark != 0xffdb { // not DQT
			if _, err := jr.rs.Seek(int64(length), io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(jr.rs, payload); err != nil {
			return 0, ErrShortDQT
		}

		qs, err := parseDQT(payload)
		if err != nil {
			return 0, err
		}
		estimates = append(estimates, qs...)
		found = found || len(qs) > 0
	}
}

// parseDQT walks one DQT payload which may carry several tables and returns
// a quality estimate per table.
func parseDQT(payload []byte) ([]int, error) {
	var estimates []int
	for len(payload) > 0 {
		precision := int(payload[0]) >> 4
		tableID := int(payload[0]) & 0x0f
		payload = payload[1:]

		var (
			entrySize int
			values    [64]int
		)
		switch precision {
		case 0:
			entrySize = 1
		case 1:
			entrySize = 2
		default:
			return nil, ErrWrongTable
		}
		if len(payload) < 64*entrySize {
			return nil, ErrShortDQT
		}

		for i := range 64 {
			if entrySize == 1 {
				values[i] = int(payload[i])
			} else {
				values[i] = int(payload[2*i])<<8 | int(payload[2*i+1])
			}
		}
		payload = payload[64*entrySize:]

		estimates = append(estimates, estimateQuality(tableID, values))
	}
	return estimates, nil
}

// estimateQuality inverts the IJG scaling formula for one table. The scale
// factor is recovered from value sums, which makes the estimate independent
// of coefficient ordering inside the table.
func estimateQuality(tableID int, values [64]int) int {
	base := &baseLuminance
	if tableID != 0 {
		base = &baseChrominance
	}

	var sumValues, sumBase int
	for i := range 64 {
		sumValues += values[i]
		sumBase += base[i]
	}

	// coded = (base*scale + 50) / 100 summed over the table
	scale := float64(100*sumValues-50*64) / float64(sumBase)

	var q float64
	if scale <= 100 {
		q = (200 - scale) / 2
	} else {
		q = 5000 / scale
	}

	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return int(q + 0.5)
}

func average(estimates []int) int {
	if len(estimates) == 0 {
		return 0
	}
	sum := 0
	for _, e := range estimates {
		sum += e
	}
	return sum / len(estimates)
}
