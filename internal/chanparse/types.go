// Package chanparse implements the channel parser (spec.md §4.F): given a
// channel's message encoding and schema bytes, it produces a
// (deserialize, datatypes) pair reused for every message on that channel.
//
// Only "cdr" message encoding is supported, with schema encodings
// "ros2msg", "ros2idl", and "omgidl". No Go library for ROS2/OMG IDL or CDR
// appeared anywhere in the reference pack (these are normally TypeScript
// packages — @foxglove/rosmsg, @foxglove/cdr), so this package is a
// hand-rolled, deliberately small implementation; see DESIGN.md.
package chanparse

// FieldType is a resolved primitive or named field type.
type FieldType struct {
	Primitive string // one of the primitiveKinds below, or "" if Named is set
	Named     string // references another definition by name
	IsArray   bool
	ArrayLen  int // 0 means dynamic-length sequence
}

// FieldDef is one field of a message definition.
type FieldDef struct {
	Name string
	Type FieldType
}

// Definition is one parsed message type (root or nested).
type Definition struct {
	Name   string
	Fields []FieldDef
}

var primitiveKinds = map[string]bool{
	"bool": true, "byte": true, "char": true,
	"int8": true, "uint8": true,
	"int16": true, "uint16": true,
	"int32": true, "uint32": true,
	"int64": true, "uint64": true,
	"float32": true, "float64": true,
	"string": true,
}
