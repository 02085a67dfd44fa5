package chanparse

import (
	"fmt"

	"github.com/gaby/logstream/internal/logmsg"
)

// wellKnownEmptyTypes are schema names allowed to carry an empty body
// without tripping ErrEmptySchema — e.g. std_msgs/Empty-shaped messages
// that carry no fields.
var wellKnownEmptyTypes = map[string]bool{
	"std_msgs/msg/Empty": true,
	"Empty":              true,
}

// Options controls non-default channel-parser behavior.
type Options struct {
	// AllowEmptySchema opts in to parsing a zero-length schema body even
	// when its name is not in the well-known "empty" set.
	AllowEmptySchema bool
}

// Parse builds a ParsedChannel for a channel given its message encoding and
// schema, per spec.md §4.F. Only messageEncoding "cdr" is supported, with
// schema encodings "ros2msg", "ros2idl", and "omgidl".
func Parse(messageEncoding string, schema *logmsg.Schema, opts Options) (*logmsg.ParsedChannel, error) {
	if messageEncoding != "cdr" {
		return nil, fmt.Errorf("chanparse: message encoding %q: %w", messageEncoding, logmsg.ErrUnsupportedEncoding)
	}
	if schema == nil {
		return nil, fmt.Errorf("chanparse: cdr requires a schema: %w", logmsg.ErrUnsupportedEncoding)
	}
	if len(schema.Data) == 0 {
		if !opts.AllowEmptySchema && !wellKnownEmptyTypes[schema.Name] {
			return nil, logmsg.ErrEmptySchema
		}
		root := Definition{Name: schema.Name}
		return buildParsedChannel(root, typeTable{schema.Name: root}), nil
	}

	var defs []Definition
	var err error
	switch schema.Encoding {
	case "omgidl":
		defs, err = parseIDL(schema.Name, string(schema.Data))
	case "ros2idl":
		defs, err = parseIDL(schema.Name, string(schema.Data))
	case "ros2msg":
		defs, err = parseROS2MSG(schema.Name, string(schema.Data))
	default:
		return nil, fmt.Errorf("chanparse: schema encoding %q: %w", schema.Encoding, logmsg.ErrUnsupportedEncoding)
	}
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("chanparse: no definitions parsed from schema %q", schema.Name)
	}

	types := make(typeTable, len(defs))
	for _, d := range defs {
		types[d.Name] = d
	}
	// Root message type is the first parsed definition, named after the schema.
	root := defs[0]
	return buildParsedChannel(root, types), nil
}

// ParseROS1 builds a ParsedChannel from a ROS1 bag connection's concatenated
// message definition text, using the packed (non-CDR) ROS1 wire encoding.
// This supplements the MCAP-oriented Parse entry point for the bag source
// (spec.md §4.I), whose connections never carry "cdr"/"ros2msg" framing.
func ParseROS1(schemaName, messageDefinition string) (*logmsg.ParsedChannel, error) {
	if messageDefinition == "" {
		if !wellKnownEmptyTypes[schemaName] {
			return nil, logmsg.ErrEmptySchema
		}
		root := Definition{Name: schemaName}
		return buildParsedChannelWith(root, typeTable{schemaName: root}, buildROS1Deserializer), nil
	}
	defs, err := parseROS2MSG(schemaName, messageDefinition)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("chanparse: no definitions parsed from connection type %q", schemaName)
	}
	types := make(typeTable, len(defs))
	for _, d := range defs {
		types[d.Name] = d
	}
	return buildParsedChannelWith(defs[0], types, buildROS1Deserializer), nil
}

func buildParsedChannel(root Definition, types typeTable) *logmsg.ParsedChannel {
	return buildParsedChannelWith(root, types, buildCDRDeserializer)
}

func buildParsedChannelWith(root Definition, types typeTable, deserializerFor func(Definition, typeTable) func([]byte) (any, error)) *logmsg.ParsedChannel {
	datatypes := make(map[string]logmsg.Datatype, len(types))
	for name, def := range types {
		fields := make([]logmsg.Field, 0, len(def.Fields))
		for _, f := range def.Fields {
			typeName := f.Type.Primitive
			if typeName == "" {
				typeName = f.Type.Named
			}
			if f.Type.IsArray {
				typeName += "[]"
			}
			fields = append(fields, logmsg.Field{Name: f.Name, Type: typeName})
		}
		datatypes[name] = logmsg.Datatype{Fields: fields}
	}

	deserialize := deserializerFor(root, types)
	return &logmsg.ParsedChannel{
		Deserialize: deserialize,
		Datatypes:   datatypes,
	}
}
