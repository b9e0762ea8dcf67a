// Package wire implements the reserved node-stream binary format used for
// debug dumps (§6.2): a header, a weight-stream section (every interned
// complex weight, dense by handle), and a node-stream section whose
// records reference weight-stream indices, in topological order leaves
// first.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// Magic identifies a node-stream dump; Version allows the record layout to
// change without breaking readers of the old format.
const (
	Magic   uint32 = 0x44445731 // "DDW1"
	Version uint16 = 2

	weightRecordSize = 16 // real float64 + imag float64
	recordSize       = 28 // Var + LowIndex + HighIndex + LowWeightIndex + HighWeightIndex
)

var (
	// ErrBadMagic is returned by Decode when the header's magic doesn't match.
	ErrBadMagic = errors.New("wire: bad magic number")
	// ErrUnsupportedVersion is returned by Decode for an unknown version.
	ErrUnsupportedVersion = errors.New("wire: unsupported version")
)

// Record is one node-stream entry: a variable index plus the low and high
// child node indices and the low/high weight-stream indices. The weight
// indices reference weight.Handle values directly into the dump's
// weight-stream section (§6.2: "weight indices reference a prior
// weight-stream section").
type Record struct {
	Var             uint32
	LowIndex        uint32
	HighIndex       uint32
	LowWeightIndex  uint64
	HighWeightIndex uint64
}

func (r Record) encode(w io.Writer) error {
	var buf [recordSize]byte
	binary.BigEndian.PutUint32(buf[0:4], r.Var)
	binary.BigEndian.PutUint32(buf[4:8], r.LowIndex)
	binary.BigEndian.PutUint32(buf[8:12], r.HighIndex)
	binary.BigEndian.PutUint64(buf[12:20], r.LowWeightIndex)
	binary.BigEndian.PutUint64(buf[20:28], r.HighWeightIndex)
	_, err := w.Write(buf[:])
	return err
}

func decodeRecord(r io.Reader) (Record, error) {
	var buf [recordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Record{}, err
	}
	return Record{
		Var:             binary.BigEndian.Uint32(buf[0:4]),
		LowIndex:        binary.BigEndian.Uint32(buf[4:8]),
		HighIndex:       binary.BigEndian.Uint32(buf[8:12]),
		LowWeightIndex:  binary.BigEndian.Uint64(buf[12:20]),
		HighWeightIndex: binary.BigEndian.Uint64(buf[20:28]),
	}, nil
}

func encodeComplex(w io.Writer, c complex128) error {
	var buf [weightRecordSize]byte
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(real(c)))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(imag(c)))
	_, err := w.Write(buf[:])
	return err
}

func decodeComplex(r io.Reader) (complex128, error) {
	var buf [weightRecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	re := math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))
	im := math.Float64frombits(binary.BigEndian.Uint64(buf[8:16]))
	return complex(re, im), nil
}

// Encode writes the header (magic, version, weight count, node count),
// then the weight stream, then one node record per entry in records, in
// the order given — callers are responsible for handing node records over
// in topological, leaves-first order. weights is indexed by weight.Handle
// directly: weights[h] is the value a Record's LowWeightIndex/
// HighWeightIndex of h resolves to.
func Encode(w io.Writer, weights []complex128, records []Record) error {
	bw := bufio.NewWriter(w)
	var header [22]byte
	binary.BigEndian.PutUint32(header[0:4], Magic)
	binary.BigEndian.PutUint16(header[4:6], Version)
	binary.BigEndian.PutUint64(header[6:14], uint64(len(weights)))
	binary.BigEndian.PutUint64(header[14:22], uint64(len(records)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	for _, c := range weights {
		if err := encodeComplex(bw, c); err != nil {
			return err
		}
	}
	for _, rec := range records {
		if err := rec.encode(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads a node-stream dump back into its weight stream and records.
func Decode(r io.Reader) ([]complex128, []Record, error) {
	br := bufio.NewReader(r)
	var header [22]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, nil, err
	}
	if binary.BigEndian.Uint32(header[0:4]) != Magic {
		return nil, nil, ErrBadMagic
	}
	if binary.BigEndian.Uint16(header[4:6]) != Version {
		return nil, nil, ErrUnsupportedVersion
	}
	weightCount := binary.BigEndian.Uint64(header[6:14])
	nodeCount := binary.BigEndian.Uint64(header[14:22])

	weights := make([]complex128, 0, weightCount)
	for i := uint64(0); i < weightCount; i++ {
		c, err := decodeComplex(br)
		if err != nil {
			return nil, nil, err
		}
		weights = append(weights, c)
	}

	records := make([]Record, 0, nodeCount)
	for i := uint64(0); i < nodeCount; i++ {
		rec, err := decodeRecord(br)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	}
	return weights, records, nil
}

// FromTable walks a node table's live entries (handles 1..Size-1, skipping any
// free-list slots) and produces the records Encode expects. Handles are
// used directly as node-stream indices; node.Terminal (0) never appears as
// a record, only as a LowIndex/HighIndex value in a real node's children.
func FromTable(t *node.Table) []Record {
	records := make([]Record, 0, t.Len())
	for h := node.Handle(1); int(h) < t.Size(); h++ {
		k, ok := t.Get(h)
		if !ok {
			continue
		}
		records = append(records, Record{
			Var:             k.Var,
			LowIndex:        uint32(k.Low),
			HighIndex:       uint32(k.High),
			LowWeightIndex:  uint64(k.LowW),
			HighWeightIndex: uint64(k.HighW),
		})
	}
	return records
}

// FromWeightTable dumps a weight table's dense handle space (reserved
// Zero/One/MinusOne included) so a Record's weight indices resolve
// directly: weights[h] == wt.Value(weight.Handle(h)).
func FromWeightTable(wt *weight.Table) []complex128 {
	n := wt.Size()
	weights := make([]complex128, n)
	for h := 0; h < n; h++ {
		weights[h] = wt.Value(weight.Handle(h))
	}
	return weights
}
