package interp

import (
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// builtinJSON serializes a value deterministically: dict keys ascending,
// callables rejected at top level and skipped inside containers.
func builtinJSON(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("json", 1, len(args), pos)
	}
	if _, ok := args[0].(Callable); ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, pos,
			"cannot serialize a closure to JSON")
	}
	var sb strings.Builder
	writeJSON(&sb, args[0])
	return &StringValue{Value: sb.String()}, nil
}

func writeJSON(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case *StringValue:
		b, _ := json.Marshal(x.Value)
		sb.Write(b)
	case *NumberValue:
		sb.WriteString(jsonNumber(x.Value))
	case *BoolValue:
		sb.WriteString(x.Inspect())
	case *TupleValue:
		sb.WriteByte('[')
		first := true
		for _, e := range x.Elements {
			if _, skip := e.(Callable); skip {
				continue
			}
			if !first {
				sb.WriteByte(',')
			}
			first = false
			writeJSON(sb, e)
		}
		sb.WriteByte(']')
	case *ArgsValue:
		if len(x.Named) > 0 {
			sb.WriteByte('{')
			first := true
			for _, k := range sortedKeys(x.Named) {
				if _, skip := x.Named[k].(Callable); skip {
					continue
				}
				if !first {
					sb.WriteByte(',')
				}
				first = false
				kb, _ := json.Marshal(k)
				sb.Write(kb)
				sb.WriteByte(':')
				writeJSON(sb, x.Named[k])
			}
			sb.WriteByte('}')
			return
		}
		writeJSON(sb, &TupleValue{Elements: x.Positional})
	case *DictValue:
		sb.WriteByte('{')
		first := true
		for _, k := range x.Keys() {
			if _, skip := x.Entries[k].(Callable); skip {
				continue
			}
			if !first {
				sb.WriteByte(',')
			}
			first = false
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			writeJSON(sb, x.Entries[k])
		}
		sb.WriteByte('}')
	case *VectorValue:
		sb.WriteByte('[')
		for i, e := range x.Elements {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(jsonNumber(e))
		}
		sb.WriteByte(']')
	}
}

func jsonNumber(v float64) string {
	s := FormatNumber(v)
	// Exponent renderings from FormatNumber are already JSON-legal.
	return s
}

func builtinParseJSON(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_json", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_json expects a string, got %s", InferType(args[0]))
	}
	if !gjson.Valid(s.Value) {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "invalid JSON")
	}
	return gjsonToValue(gjson.Parse(s.Value)), nil
}

func gjsonToValue(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return &StringValue{Value: r.Str}
	case gjson.Number:
		return &NumberValue{Value: r.Num}
	case gjson.True:
		return &BoolValue{Value: true}
	case gjson.False:
		return &BoolValue{Value: false}
	case gjson.Null:
		return EmptyString()
	}
	if r.IsArray() {
		var elems []Value
		r.ForEach(func(_, item gjson.Result) bool {
			elems = append(elems, gjsonToValue(item))
			return true
		})
		return &TupleValue{Elements: elems}
	}
	if r.IsObject() {
		d := NewDict()
		r.ForEach(func(key, item gjson.Result) bool {
			d.Entries[key.String()] = gjsonToValue(item)
			return true
		})
		return d
	}
	return EmptyString()
}

// builtinParseAuto interprets a string as JSON, a number or a boolean
// when it looks like one; anything else passes through trimmed.
func builtinParseAuto(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_auto", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return args[0], nil
	}
	trimmed := strings.TrimSpace(s.Value)
	switch trimmed {
	case "true":
		return &BoolValue{Value: true}, nil
	case "false":
		return &BoolValue{Value: false}, nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return &NumberValue{Value: n}, nil
	}
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(trimmed) {
		return gjsonToValue(gjson.Parse(trimmed)), nil
	}
	return &StringValue{Value: trimmed}, nil
}

// builtinParseXML parses an XML document into nested dicts of the shape
// {tag, attrs, children, text}.
func builtinParseXML(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_xml", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_xml expects a string, got %s", InferType(args[0]))
	}

	dec := xml.NewDecoder(strings.NewReader(s.Value))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "invalid XML: %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			node, err := parseXMLElement(dec, start)
			if err != nil {
				return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "invalid XML: %v", err)
			}
			return node, nil
		}
	}
}

func parseXMLElement(dec *xml.Decoder, start xml.StartElement) (*DictValue, error) {
	node := NewDict()
	node.Entries["tag"] = &StringValue{Value: start.Name.Local}

	attrs := NewDict()
	for _, a := range start.Attr {
		attrs.Entries[a.Name.Local] = &StringValue{Value: a.Value}
	}
	node.Entries["attrs"] = attrs

	var children []Value
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			node.Entries["children"] = &TupleValue{Elements: children}
			node.Entries["text"] = &StringValue{Value: strings.TrimSpace(text.String())}
			return node, nil
		}
	}
}

// builtinParseFence returns the content of the first fenced code block.
func builtinParseFence(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_fence", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_fence expects a string, got %s", InferType(args[0]))
	}
	fences := extractFences(s.Value)
	if len(fences) == 0 {
		return EmptyString(), nil
	}
	return fences[0].Entries["content"], nil
}

// builtinParseFences returns every fenced code block as {lang, content}.
func builtinParseFences(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_fences", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_fences expects a string, got %s", InferType(args[0]))
	}
	fences := extractFences(s.Value)
	elems := make([]Value, len(fences))
	for i, f := range fences {
		elems[i] = f
	}
	return &TupleValue{Elements: elems}, nil
}

func extractFences(src string) []*DictValue {
	var out []*DictValue
	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "```") {
			continue
		}
		lang := strings.TrimSpace(strings.TrimPrefix(line, "```"))
		var content []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closed = true
				break
			}
			content = append(content, lines[j])
		}
		if !closed {
			break
		}
		d := NewDict()
		d.Entries["lang"] = &StringValue{Value: lang}
		d.Entries["content"] = &StringValue{Value: strings.Join(content, "\n")}
		out = append(out, d)
		i = j
	}
	return out
}

// builtinParseFrontmatter splits a document into its YAML frontmatter
// and body, returning {meta, body}.
func builtinParseFrontmatter(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_frontmatter", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_frontmatter expects a string, got %s", InferType(args[0]))
	}

	result := NewDict()
	result.Entries["meta"] = NewDict()
	result.Entries["body"] = &StringValue{Value: s.Value}

	content := strings.TrimPrefix(s.Value, "\ufeff")
	if !strings.HasPrefix(content, "---\n") && content != "---" {
		return result, nil
	}
	rest := strings.TrimPrefix(content, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return result, nil
	}
	front := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "invalid frontmatter: %v", err)
	}
	mv, err := FromGo(meta)
	if err != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "invalid frontmatter: %v", err)
	}
	result.Entries["meta"] = mv
	result.Entries["body"] = &StringValue{Value: body}
	return result, nil
}

// builtinParseChecklist extracts "- [ ]" / "- [x]" items as
// {text, done} dicts.
func builtinParseChecklist(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("parse_checklist", 1, len(args), pos)
	}
	s, ok := args[0].(*StringValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"parse_checklist expects a string, got %s", InferType(args[0]))
	}

	var items []Value
	for _, line := range strings.Split(s.Value, "\n") {
		trimmed := strings.TrimSpace(line)
		marker := ""
		switch {
		case strings.HasPrefix(trimmed, "- ["), strings.HasPrefix(trimmed, "* ["):
			marker = trimmed[2:]
		default:
			continue
		}
		if len(marker) < 3 || marker[0] != '[' || marker[2] != ']' {
			continue
		}
		done := marker[1] == 'x' || marker[1] == 'X'
		if marker[1] != ' ' && !done {
			continue
		}
		item := NewDict()
		item.Entries["text"] = &StringValue{Value: strings.TrimSpace(marker[3:])}
		item.Entries["done"] = &BoolValue{Value: done}
		items = append(items, item)
	}
	return &TupleValue{Elements: items}, nil
}
