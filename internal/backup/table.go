package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Table flattened section used by the CSV and XLSX writers.
type Table struct {
	Section Section
	Columns []string
	Rows    []map[string]json.RawMessage
}

// Tables flattens the present sections. Columns are the union of record keys
// in first-seen order, so the layout is stable across exports.
func Tables(d *Data, sections []Section) ([]Table, error) {
	out := make([]Table, 0, len(sections))
	for _, s := range sections {
		recs, ok := d.Records(s.Key)
		if !ok {
			continue
		}
		t := Table{Section: s, Columns: []string{}, Rows: make([]map[string]json.RawMessage, 0, len(recs))}
		seen := map[string]bool{}
		for _, rec := range recs {
			raw, err := json.Marshal(rec)
			if err != nil {
				return nil, fmt.Errorf("encode %s record: %w", s.Key, err)
			}
			keys, row, err := orderedObject(raw)
			if err != nil {
				return nil, fmt.Errorf("flatten %s record: %w", s.Key, err)
			}
			for _, k := range keys {
				if !seen[k] {
					seen[k] = true
					t.Columns = append(t.Columns, k)
				}
			}
			t.Rows = append(t.Rows, row)
		}
		out = append(out, t)
	}
	return out, nil
}

// orderedObject decodes a JSON object keeping its key order.
func orderedObject(raw []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object")
	}
	var keys []string
	values := map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected object key")
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values[key] = v
	}
	return keys, values, nil
}

type cellKind int

const (
	cellEmpty cellKind = iota
	cellString
	cellComposite
	cellScalar
)

// classify returns the cell kind and its text: the decoded string, compact
// JSON for objects and arrays, or the raw literal for numbers and booleans.
func classify(v json.RawMessage) (cellKind, string) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return cellEmpty, ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return cellString, string(v)
		}
		return cellString, s
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return cellComposite, string(v)
		}
		return cellComposite, buf.String()
	}
	return cellScalar, string(v)
}
