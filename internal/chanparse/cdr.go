package chanparse

import (
	"encoding/binary"
	"fmt"
)

// cdrReader decodes a CDR (Common Data Representation) byte stream per the
// DDS/ROS 2 wire encoding: a 4-byte encapsulation header selects
// endianness, after which every field is aligned to its own size relative
// to the start of the buffer (header included).
type cdrReader struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

func newCDRReader(buf []byte) (*cdrReader, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("chanparse: cdr buffer too short for encapsulation header")
	}
	var order binary.ByteOrder = binary.BigEndian
	switch buf[1] {
	case 0, 2:
		order = binary.BigEndian
	case 1, 3:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("chanparse: unrecognized cdr encapsulation kind %d", buf[1])
	}
	return &cdrReader{buf: buf, pos: 4, order: order}, nil
}

func (r *cdrReader) align(n int) {
	if n <= 1 {
		return
	}
	if rem := r.pos % n; rem != 0 {
		r.pos += n - rem
	}
}

func (r *cdrReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("chanparse: cdr read past end of buffer (pos=%d need=%d len=%d)", r.pos, n, len(r.buf))
	}
	return nil
}

func (r *cdrReader) readBool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *cdrReader) readU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *cdrReader) readU16() (uint16, error) {
	r.align(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *cdrReader) readU32() (uint32, error) {
	r.align(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *cdrReader) readU64() (uint64, error) {
	r.align(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *cdrReader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)-1]) // drop trailing NUL
	r.pos += int(n)
	return s, nil
}

// typeTable resolves named field types during decode.
type typeTable map[string]Definition

// decodeField decodes one field (possibly an array/sequence of it).
func (r *cdrReader) decodeField(f FieldDef, types typeTable) (any, error) {
	if f.Type.IsArray {
		n := f.Type.ArrayLen
		if n == 0 {
			u, err := r.readU32()
			if err != nil {
				return nil, err
			}
			n = int(u)
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			v, err := r.decodeScalar(f.Type, types)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return r.decodeScalar(f.Type, types)
}

func (r *cdrReader) decodeScalar(t FieldType, types typeTable) (any, error) {
	if t.Primitive != "" {
		switch t.Primitive {
		case "bool":
			return r.readBool()
		case "byte", "uint8", "char":
			return r.readU8()
		case "int8":
			v, err := r.readU8()
			return int8(v), err
		case "uint16":
			return r.readU16()
		case "int16":
			v, err := r.readU16()
			return int16(v), err
		case "uint32":
			return r.readU32()
		case "int32":
			v, err := r.readU32()
			return int32(v), err
		case "uint64":
			return r.readU64()
		case "int64":
			v, err := r.readU64()
			return int64(v), err
		case "float32":
			v, err := r.readU32()
			if err != nil {
				return nil, err
			}
			return float32FromBits(v), nil
		case "float64":
			v, err := r.readU64()
			if err != nil {
				return nil, err
			}
			return float64FromBits(v), nil
		case "string":
			return r.readString()
		default:
			return nil, fmt.Errorf("chanparse: unknown primitive type %q", t.Primitive)
		}
	}
	def, ok := types[t.Named]
	if !ok {
		return nil, fmt.Errorf("chanparse: unresolved named type %q", t.Named)
	}
	return r.decodeStruct(def, types)
}

func (r *cdrReader) decodeStruct(def Definition, types typeTable) (map[string]any, error) {
	out := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		v, err := r.decodeField(f, types)
		if err != nil {
			return nil, fmt.Errorf("chanparse: field %q of %q: %w", f.Name, def.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// buildCDRDeserializer returns a deserialize function bound to the root
// definition and full type table.
func buildCDRDeserializer(root Definition, types typeTable) func([]byte) (any, error) {
	return func(data []byte) (any, error) {
		r, err := newCDRReader(data)
		if err != nil {
			return nil, err
		}
		return r.decodeStruct(root, types)
	}
}
