package chanparse

import (
	"fmt"
	"strconv"
	"strings"
)

const nestedSeparator = "==="

// parseROS2MSG parses a concatenated ROS message definition: a root
// definition followed by zero or more "MSG: pkg/Type" sections separated by
// a line of "===...". rootName is used as the name of the first section.
func parseROS2MSG(rootName, text string) ([]Definition, error) {
	sections := splitSections(text)
	if len(sections) == 0 {
		return nil, fmt.Errorf("chanparse: empty ros2msg definition")
	}

	defs := make([]Definition, 0, len(sections))
	for i, sec := range sections {
		name := sec.name
		if i == 0 && name == "" {
			name = rootName
		}
		// Nested sections are keyed by base name, the form parseTypeToken
		// gives field type references.
		if idx := strings.LastIndex(name, "/"); i > 0 && idx >= 0 {
			name = name[idx+1:]
		}
		fields, err := parseFieldLines(sec.body)
		if err != nil {
			return nil, fmt.Errorf("chanparse: parsing %q: %w", name, err)
		}
		defs = append(defs, Definition{Name: name, Fields: fields})
	}
	return defs, nil
}

type rawSection struct {
	name string
	body string
}

// splitSections splits on lines consisting solely of "=" repeated, with each
// subsequent section introduced by a "MSG: pkg/Type" header line.
func splitSections(text string) []rawSection {
	lines := strings.Split(text, "\n")
	var sections []rawSection
	cur := rawSection{}
	var body []string
	flush := func() {
		cur.body = strings.Join(body, "\n")
		sections = append(sections, cur)
		body = nil
	}
	started := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, nestedSeparator) && strings.Trim(trimmed, "=") == "" {
			if started {
				flush()
			}
			cur = rawSection{}
			started = true
			continue
		}
		if strings.HasPrefix(trimmed, "MSG:") {
			cur.name = strings.TrimSpace(strings.TrimPrefix(trimmed, "MSG:"))
			continue
		}
		body = append(body, line)
		started = true
	}
	flush()
	return sections
}

func parseFieldLines(body string) ([]FieldDef, error) {
	var fields []FieldDef
	for _, line := range strings.Split(body, "\n") {
		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		typeTok, nameTok := parts[0], parts[1]
		if strings.Contains(nameTok, "=") {
			// constant definition (e.g. "int32 FOO=1"), not a field.
			continue
		}
		ft, err := parseTypeToken(typeTok)
		if err != nil {
			return nil, err
		}
		fields = append(fields, FieldDef{Name: nameTok, Type: ft})
	}
	return fields, nil
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func parseTypeToken(tok string) (FieldType, error) {
	isArray := false
	arrayLen := 0
	if idx := strings.Index(tok, "["); idx >= 0 {
		if !strings.HasSuffix(tok, "]") {
			return FieldType{}, fmt.Errorf("chanparse: malformed array type %q", tok)
		}
		inner := tok[idx+1 : len(tok)-1]
		tok = tok[:idx]
		isArray = true
		if inner != "" {
			n, err := strconv.Atoi(inner)
			if err != nil {
				return FieldType{}, fmt.Errorf("chanparse: bad array length in %q: %w", tok, err)
			}
			arrayLen = n
		}
	}
	if primitiveKinds[tok] {
		return FieldType{Primitive: tok, IsArray: isArray, ArrayLen: arrayLen}, nil
	}
	// Strip package qualifier ("pkg/Type" -> "Type"); named types resolve
	// by base name.
	name := tok
	if idx := strings.LastIndex(tok, "/"); idx >= 0 {
		name = tok[idx+1:]
	}
	return FieldType{Named: name, IsArray: isArray, ArrayLen: arrayLen}, nil
}
