package chanparse

import (
	"encoding/binary"
	"fmt"
)

// ros1Reader decodes the ROS1 raw serialization: fields are packed
// little-endian with no alignment padding and no encapsulation header,
// unlike CDR. Strings and dynamic arrays are uint32-length-prefixed.
type ros1Reader struct {
	buf []byte
	pos int
}

func newROS1Reader(buf []byte) *ros1Reader {
	return &ros1Reader{buf: buf}
}

func (r *ros1Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("chanparse: ros1 read past end of buffer (pos=%d need=%d len=%d)", r.pos, n, len(r.buf))
	}
	return nil
}

func (r *ros1Reader) readU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *ros1Reader) readU16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *ros1Reader) readU32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *ros1Reader) readU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *ros1Reader) readString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *ros1Reader) decodeField(f FieldDef, types typeTable) (any, error) {
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

func (r *ros1Reader) decodeScalar(t FieldType, types typeTable) (any, error) {
	if t.Primitive != "" {
		switch t.Primitive {
		case "bool":
			v, err := r.readU8()
			return v != 0, err
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
	switch t.Named {
	case "time":
		return r.decodeTimeOrDuration(false)
	case "duration":
		return r.decodeTimeOrDuration(true)
	}
	def, ok := types[t.Named]
	if !ok {
		return nil, fmt.Errorf("chanparse: unresolved named type %q", t.Named)
	}
	return r.decodeStruct(def, types)
}

// decodeTimeOrDuration reads ROS1's builtin time/duration primitives: two
// packed 4-byte fields, secs then nsecs, neither resolved through the
// schema's type table since the .msg grammar never declares them.
func (r *ros1Reader) decodeTimeOrDuration(signed bool) (map[string]any, error) {
	secsRaw, err := r.readU32()
	if err != nil {
		return nil, err
	}
	nsecsRaw, err := r.readU32()
	if err != nil {
		return nil, err
	}
	out := map[string]any{"nsecs": nsecsRaw}
	if signed {
		out["secs"] = int32(secsRaw)
	} else {
		out["secs"] = secsRaw
	}
	return out, nil
}

func (r *ros1Reader) decodeStruct(def Definition, types typeTable) (map[string]any, error) {
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

// buildROS1Deserializer returns a deserialize function bound to the root
// definition and full type table, for the "ros1" message encoding.
func buildROS1Deserializer(root Definition, types typeTable) func([]byte) (any, error) {
	return func(data []byte) (any, error) {
		r := newROS1Reader(data)
		return r.decodeStruct(root, types)
	}
}
