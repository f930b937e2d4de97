package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"
)

// parseJSON parses JSON or JSONC. jsonc.ToJSON blanks comments and trailing
// commas without moving any byte, so decoder offsets still map to source
// lines.
func parseJSON(data []byte) (*node, error) {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil, nil
	}

	p := &jsonParser{data: clean, dec: json.NewDecoder(bytes.NewReader(clean))}
	p.dec.UseNumber()

	n, err := p.value()
	if err != nil {
		return nil, err
	}
	if _, err := p.dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("line %d: unexpected data after top-level value", p.line())
	}
	return n, nil
}

type jsonParser struct {
	data []byte
	dec  *json.Decoder
}

func (p *jsonParser) line() int {
	off := int(p.dec.InputOffset())
	for off < len(p.data) && bytes.IndexByte([]byte(" \t\r\n,:"), p.data[off]) >= 0 {
		off++
	}
	if off > len(p.data) {
		off = len(p.data)
	}
	return 1 + bytes.Count(p.data[:off], []byte("\n"))
}

func (p *jsonParser) value() (*node, error) {
	line := p.line()
	tok, err := p.dec.Token()
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &node{isMap: true, line: line}
			for p.dec.More() {
				keyTok, err := p.dec.Token()
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", p.line(), err)
				}
				key, _ := keyTok.(string)
				child, err := p.value()
				if err != nil {
					return nil, err
				}
				n.fields = append(n.fields, field{key: key, node: child})
			}
			_, err := p.dec.Token()
			return n, err
		case '[':
			var items []any
			for p.dec.More() {
				child, err := p.value()
				if err != nil {
					return nil, err
				}
				v, err := plain(child)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := p.dec.Token(); err != nil {
				return nil, err
			}
			if items == nil {
				items = []any{}
			}
			return &node{value: items, line: line}, nil
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return &node{value: i, line: line}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		return &node{value: f, line: line}, nil
	}
	return &node{value: tok, line: line}, nil
}
