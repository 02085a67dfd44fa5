package chanparse

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gaby/logstream/internal/logmsg"
)

func TestParseUnsupportedMessageEncoding(t *testing.T) {
	_, err := Parse("json", &logmsg.Schema{Name: "x"}, Options{})
	if !errors.Is(err, logmsg.ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestParseUnsupportedSchemaEncoding(t *testing.T) {
	_, err := Parse("cdr", &logmsg.Schema{Name: "x", Encoding: "protobuf", Data: []byte("x")}, Options{})
	if !errors.Is(err, logmsg.ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestParseEmptySchemaRejectedUnlessWellKnown(t *testing.T) {
	_, err := Parse("cdr", &logmsg.Schema{Name: "weird/Type", Encoding: "ros2msg", Data: nil}, Options{})
	if err != logmsg.ErrEmptySchema {
		t.Fatalf("expected ErrEmptySchema, got %v", err)
	}

	pc, err := Parse("cdr", &logmsg.Schema{Name: "std_msgs/msg/Empty", Encoding: "ros2msg", Data: nil}, Options{})
	if err != nil {
		t.Fatalf("expected well-known empty schema to parse, got %v", err)
	}
	if pc == nil {
		t.Fatal("expected non-nil ParsedChannel")
	}
}

func TestParseROS2MSGAndDeserialize(t *testing.T) {
	def := "int32 x\nint32 y\nstring name\n"
	pc, err := Parse("cdr", &logmsg.Schema{Name: "geometry/Point", Encoding: "ros2msg", Data: []byte(def)}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, 0, 1, 0, 0) // little-endian CDR encapsulation header
	xb := make([]byte, 4)
	binary.LittleEndian.PutUint32(xb, uint32(int32(7)))
	buf = append(buf, xb...)
	yb := make([]byte, 4)
	y := int32(-3)
	binary.LittleEndian.PutUint32(yb, uint32(y))
	buf = append(buf, yb...)
	name := "hi"
	lb := make([]byte, 4)
	binary.LittleEndian.PutUint32(lb, uint32(len(name)+1))
	buf = append(buf, lb...)
	buf = append(buf, []byte(name)...)
	buf = append(buf, 0)

	v, err := pc.Deserialize(buf)
	if err != nil {
		t.Fatal(err)
	}
	m := v.(map[string]any)
	if m["x"].(int32) != 7 || m["y"].(int32) != -3 || m["name"].(string) != "hi" {
		t.Fatalf("unexpected decode: %+v", m)
	}

	// deserialize must be idempotent under repeated calls on the same bytes.
	v2, err := pc.Deserialize(buf)
	if err != nil {
		t.Fatal(err)
	}
	m2 := v2.(map[string]any)
	if m2["x"] != m["x"] || m2["y"] != m["y"] || m2["name"] != m["name"] {
		t.Fatalf("deserialize not idempotent: %+v vs %+v", m, m2)
	}
}

func TestParseIDLStruct(t *testing.T) {
	idl := `
struct Point {
  long x;
  long y;
};
`
	pc, err := Parse("cdr", &logmsg.Schema{Name: "Point", Encoding: "omgidl", Data: []byte(idl)}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pc.Datatypes["Point"]; !ok {
		t.Fatalf("expected Point datatype, got %+v", pc.Datatypes)
	}
}
