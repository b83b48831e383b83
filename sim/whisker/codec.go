package whisker

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion is written at the head of every serialized tree.
const FormatVersion = 1

// ErrMalformed is returned by Load for input that is not a valid policy.
var ErrMalformed = errors.New("malformed whisker tree")

// Field numbers of the serialized policy. The file is a protobuf message:
//
//	message Policy { uint32 version = 1; repeated Node nodes = 2; }
//	message Node   { Range domain = 1; uint32 children = 2; Leaf leaf = 3; }
//	message Range  { repeated double lower = 1; repeated double upper = 2; }
//	message Leaf   { sint64 window_increment = 1; double window_multiple = 2;
//	                 double intersend = 3; uint32 generation = 4; }
//
// Nodes are listed in pre-order; an interior node is followed by its children.
const (
	fieldPolicyVersion protowire.Number = 1
	fieldPolicyNodes   protowire.Number = 2

	fieldNodeDomain   protowire.Number = 1
	fieldNodeChildren protowire.Number = 2
	fieldNodeLeaf     protowire.Number = 3

	fieldRangeLower protowire.Number = 1
	fieldRangeUpper protowire.Number = 2

	fieldLeafIncrement  protowire.Number = 1
	fieldLeafMultiple   protowire.Number = 2
	fieldLeafIntersend  protowire.Number = 3
	fieldLeafGeneration protowire.Number = 4
)

// Marshal encodes the tree structure, domains, actions and generations.
// Usage counters are not persisted.
func Marshal(t *WhiskerTree) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPolicyVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FormatVersion)
	var walk func(n *WhiskerTree)
	walk = func(n *WhiskerTree) {
		b = protowire.AppendTag(b, fieldPolicyNodes, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalNode(n))
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t)
	return b
}

func marshalNode(n *WhiskerTree) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldNodeDomain, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalRange(n.domain))
	if n.leaf != nil {
		b = protowire.AppendTag(b, fieldNodeLeaf, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLeaf(*n.leaf))
		return b
	}
	b = protowire.AppendTag(b, fieldNodeChildren, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(n.children)))
	return b
}

func marshalRange(r MemoryRange) []byte {
	packed := func(m Memory) []byte {
		var p []byte
		for _, v := range m {
			p = protowire.AppendFixed64(p, math.Float64bits(v))
		}
		return p
	}
	var b []byte
	b = protowire.AppendTag(b, fieldRangeLower, protowire.BytesType)
	b = protowire.AppendBytes(b, packed(r.Lower))
	b = protowire.AppendTag(b, fieldRangeUpper, protowire.BytesType)
	b = protowire.AppendBytes(b, packed(r.Upper))
	return b
}

func marshalLeaf(w Whisker) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldLeafIncrement, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(w.Action.WindowIncrement)))
	b = protowire.AppendTag(b, fieldLeafMultiple, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(w.Action.WindowMultiple))
	b = protowire.AppendTag(b, fieldLeafIntersend, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(w.Action.Intersend))
	b = protowire.AppendTag(b, fieldLeafGeneration, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(w.Generation))
	return b
}

// Save writes the serialized tree to w.
func Save(w io.Writer, t *WhiskerTree) error {
	if _, err := w.Write(Marshal(t)); err != nil {
		return fmt.Errorf("writing whisker tree: %w", err)
	}
	return nil
}

// Load reads a serialized tree from r and checks the partition invariant.
func Load(r io.Reader, s Settings) (*WhiskerTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading whisker tree: %w", err)
	}
	return Unmarshal(data, s)
}

// record is one decoded Node message.
type record struct {
	domain   MemoryRange
	children int
	leaf     *Whisker
}

// Unmarshal decodes a tree produced by Marshal.
func Unmarshal(data []byte, s Settings) (*WhiskerTree, error) {
	var records []record
	version := uint64(0)
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == fieldPolicyVersion && typ == protowire.VarintType:
			version = u
		case num == fieldPolicyNodes && typ == protowire.BytesType:
			rec, err := unmarshalNode(v)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformed, version)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrMalformed)
	}

	settings := &s
	pos := 0
	var build func() (*WhiskerTree, error)
	build = func() (*WhiskerTree, error) {
		if pos >= len(records) {
			return nil, fmt.Errorf("%w: truncated node list", ErrMalformed)
		}
		rec := records[pos]
		pos++
		n := &WhiskerTree{domain: rec.domain, settings: settings}
		if rec.leaf != nil {
			w := *rec.leaf
			w.Domain = rec.domain
			n.leaf = &w
			return n, nil
		}
		if rec.children == 0 {
			return nil, fmt.Errorf("%w: interior node %s without children", ErrMalformed, rec.domain)
		}
		for i := 0; i < rec.children; i++ {
			c, err := build()
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		}
		return n, nil
	}
	tree, err := build()
	if err != nil {
		return nil, err
	}
	if pos != len(records) {
		return nil, fmt.Errorf("%w: %d trailing nodes", ErrMalformed, len(records)-pos)
	}
	if tree.domain != FullRange() {
		return nil, fmt.Errorf("%w: root covers %s, not the whole memory space", ErrMalformed, tree.domain)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return tree, nil
}

func unmarshalNode(data []byte) (record, error) {
	var rec record
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == fieldNodeDomain && typ == protowire.BytesType:
			d, err := unmarshalRange(v)
			if err != nil {
				return err
			}
			rec.domain = d
		case num == fieldNodeChildren && typ == protowire.VarintType:
			rec.children = int(u)
		case num == fieldNodeLeaf && typ == protowire.BytesType:
			w, err := unmarshalLeaf(v)
			if err != nil {
				return err
			}
			rec.leaf = &w
		}
		return nil
	})
	return rec, err
}

func unmarshalRange(data []byte) (MemoryRange, error) {
	var r MemoryRange
	seen := 0
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType || (num != fieldRangeLower && num != fieldRangeUpper) {
			return nil
		}
		var m Memory
		for i := 0; i < NumAxes; i++ {
			bits, n := protowire.ConsumeFixed64(v)
			if n < 0 {
				return fmt.Errorf("%w: range has fewer than %d axes", ErrMalformed, NumAxes)
			}
			m[i] = math.Float64frombits(bits)
			v = v[n:]
		}
		if num == fieldRangeLower {
			r.Lower = m
		} else {
			r.Upper = m
		}
		seen++
		return nil
	})
	if err == nil && seen != 2 {
		err = fmt.Errorf("%w: range needs both bounds", ErrMalformed)
	}
	return r, err
}

func unmarshalLeaf(data []byte) (Whisker, error) {
	var w Whisker
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == fieldLeafIncrement && typ == protowire.VarintType:
			w.Action.WindowIncrement = int(protowire.DecodeZigZag(u))
		case num == fieldLeafMultiple && typ == protowire.Fixed64Type:
			w.Action.WindowMultiple = math.Float64frombits(u)
		case num == fieldLeafIntersend && typ == protowire.Fixed64Type:
			w.Action.Intersend = math.Float64frombits(u)
		case num == fieldLeafGeneration && typ == protowire.VarintType:
			w.Generation = uint(u)
		}
		return nil
	})
	return w, err
}

// forEachField walks the top-level fields of a message. Bytes fields are passed
// as v, varint and fixed64 fields as u. Unknown wire types are skipped.
func forEachField(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		var (
			v []byte
			u uint64
		)
		switch typ {
		case protowire.VarintType:
			u, n = protowire.ConsumeVarint(data)
		case protowire.Fixed64Type:
			u, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]
		if err := fn(num, typ, v, u); err != nil {
			return err
		}
	}
	return nil
}
