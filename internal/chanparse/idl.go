package chanparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// idlStructRe matches "struct Name { ... };" bodies, non-greedily, across
// lines. It intentionally ignores module/namespace wrappers and comments —
// both ros2idl and omgidl schemas in practice are a flat list of struct
// definitions per message, which is all the channel parser's contract
// (Datatypes keyed by name) requires.
var idlStructRe = regexp.MustCompile(`(?s)struct\s+([A-Za-z_][A-Za-z0-9_]*)\s*\{(.*?)\}\s*;`)

var idlFieldRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_:]*)\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\[\s*(\d*)\s*\])?\s*;?\s*$`)

var idlTypeMap = map[string]string{
	"boolean": "bool", "octet": "uint8", "char": "char",
	"short": "int16", "unsigned short": "uint16",
	"long": "int32", "unsigned long": "uint32",
	"long long": "int64", "unsigned long long": "uint64",
	"float": "float32", "double": "float64",
	"string": "string",
}

// parseIDL extracts struct definitions from raw OMG/ROS2 IDL text. The
// first struct found is returned first so callers can treat it as the root
// when the schema name doesn't match any struct verbatim.
func parseIDL(rootName, text string) ([]Definition, error) {
	text = stripIDLComments(text)
	matches := idlStructRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("chanparse: no struct definitions found in idl schema")
	}
	defs := make([]Definition, 0, len(matches))
	for _, m := range matches {
		name, body := m[1], m[2]
		fields, err := parseIDLFields(body)
		if err != nil {
			return nil, fmt.Errorf("chanparse: parsing struct %q: %w", name, err)
		}
		defs = append(defs, Definition{Name: name, Fields: fields})
	}
	// Prefer the struct literally named after the schema as the root, if present.
	for i, d := range defs {
		if d.Name == rootName && i != 0 {
			defs[0], defs[i] = defs[i], defs[0]
			break
		}
	}
	return defs, nil
}

func stripIDLComments(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if idx := strings.Index(l, "//"); idx >= 0 {
			lines[i] = l[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

func parseIDLFields(body string) ([]FieldDef, error) {
	var fields []FieldDef
	for _, stmt := range strings.Split(body, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		m := idlFieldRe.FindStringSubmatch(stmt + ";")
		if m == nil {
			continue
		}
		typeTok, name, _, lenTok := m[1], m[2], m[3], m[4]
		isArray := m[3] != ""
		arrayLen := 0
		if lenTok != "" {
			n, err := strconv.Atoi(lenTok)
			if err != nil {
				return nil, fmt.Errorf("chanparse: bad idl array length: %w", err)
			}
			arrayLen = n
		}
		resolved, ok := idlTypeMap[typeTok]
		var ft FieldType
		if ok {
			ft = FieldType{Primitive: resolved, IsArray: isArray, ArrayLen: arrayLen}
		} else {
			ft = FieldType{Named: typeTok, IsArray: isArray, ArrayLen: arrayLen}
		}
		fields = append(fields, FieldDef{Name: name, Type: ft})
	}
	return fields, nil
}
