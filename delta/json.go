package delta

import (
	"encoding/json"
	"fmt"
)

// +----------+
// | Encoding |
// +----------+

// ToJSON projects d into plain JSON values (maps, slices, strings, numbers,
// booleans and nil). Empty attrs and children are omitted.
func (d *Delta) ToJSON() map[string]any {
	m := map[string]any{"type": "delta"}
	if d.name != "" {
		m["name"] = d.name
	}
	if len(d.attrs) > 0 {
		attrs := make(map[string]any, len(d.attrs))
		for key, op := range d.attrs {
			attrs[key] = op.ToJSON()
		}
		m["attrs"] = attrs
	}
	if d.children.n > 0 {
		children := make([]any, 0, d.children.n)
		for op := d.children.head; op != nil; op = op.next {
			children = append(children, op.ToJSON())
		}
		m["children"] = children
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (d *Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSON())
}

// ToJSON projects op into plain JSON values.
func (op *ChildOp) ToJSON() map[string]any {
	var m map[string]any
	switch op.kind {
	case KindText:
		m = map[string]any{"type": "insert", "insert": string(op.text)}
	case KindInsert:
		items := make([]any, len(op.items))
		for i, item := range op.items {
			items[i] = valueJSON(item)
		}
		m = map[string]any{"type": "insert", "insert": items}
	case KindDelete:
		return map[string]any{"delete": op.count}
	case KindRetain:
		m = map[string]any{"type": "retain", "retain": op.count}
	case KindModify:
		m = map[string]any{"type": "modify", "value": op.value.ToJSON()}
	}
	if op.format != nil {
		f := make(map[string]any, len(op.format))
		for k, v := range op.format {
			f[k] = valueJSON(v)
		}
		m["format"] = f
	}
	if !op.attribution.IsZero() {
		m["attribution"] = op.attribution.ToJSON()
	}
	return m
}

// ToJSON projects op into plain JSON values.
func (op *AttrOp) ToJSON() map[string]any {
	var m map[string]any
	switch op.kind {
	case AttrSet:
		m = map[string]any{"type": "insert", "value": valueJSON(op.value)}
	case AttrModify:
		return map[string]any{"type": "modify", "value": op.delta.ToJSON()}
	case AttrDelete:
		m = map[string]any{"type": "delete"}
	}
	if op.hasPrev {
		m["prevValue"] = valueJSON(op.prevValue)
	}
	if !op.attribution.IsZero() {
		m["attribution"] = op.attribution.ToJSON()
	}
	return m
}

// ToJSON projects a into plain JSON values.
func (a *Attribution) ToJSON() map[string]any {
	m := make(map[string]any)
	strs := func(ss []string) []any {
		vs := make([]any, len(ss))
		for i, s := range ss {
			vs[i] = s
		}
		return vs
	}
	if len(a.Insert) > 0 {
		m["insert"] = strs(a.Insert)
	}
	if a.InsertAt != 0 {
		m["insertAt"] = a.InsertAt
	}
	if len(a.Delete) > 0 {
		m["delete"] = strs(a.Delete)
	}
	if a.DeleteAt != 0 {
		m["deleteAt"] = a.DeleteAt
	}
	if len(a.Format) > 0 {
		f := make(map[string]any, len(a.Format))
		for k, v := range a.Format {
			f[k] = strs(v)
		}
		m["format"] = f
	}
	if a.FormatAt != 0 {
		m["formatAt"] = a.FormatAt
	}
	return m
}

func valueJSON(v any) any {
	if d, ok := v.(*Delta); ok {
		return d.ToJSON()
	}
	return v
}

// +----------+
// | Decoding |
// +----------+

// Unmarshal parses the JSON form of a delta.
func Unmarshal(data []byte) (*Delta, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return FromJSON(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Delta) UnmarshalJSON(data []byte) error {
	parsed, err := Unmarshal(data)
	if err != nil {
		return err
	}
	d.adopt(parsed)
	return nil
}

// Moves the contents of p into d, relinking the children to d's list.
func (d *Delta) adopt(p *Delta) {
	d.name = p.name
	d.attrs = p.attrs
	d.children = opList{}
	for op := p.children.head; op != nil; {
		next := op.next
		d.children.pushBack(op)
		op = next
	}
	d.childCnt = p.childCnt
	d.sealed = false
	d.fp = ""
}

// FromJSON builds a mutable delta from its JSON projection, as produced by
// ToJSON or decoded by encoding/json.
func FromJSON(v any) (*Delta, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: delta is %T, want an object", ErrInvalidJSON, v)
	}
	if typ, ok := m["type"]; ok && typ != "delta" {
		return nil, fmt.Errorf("%w: delta type is %v", ErrInvalidJSON, typ)
	}
	d := New()
	if name, ok := m["name"]; ok {
		s, ok := name.(string)
		if !ok {
			return nil, fmt.Errorf("%w: name is %T", ErrInvalidJSON, name)
		}
		d.name = s
	}
	if attrs, ok := m["attrs"]; ok {
		am, ok := attrs.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: attrs is %T", ErrInvalidJSON, attrs)
		}
		for key, x := range am {
			op, err := attrFromJSON(x)
			if err != nil {
				return nil, fmt.Errorf("attr %q: %w", key, err)
			}
			d.attrs[key] = op
		}
	}
	if children, ok := m["children"]; ok {
		cs, ok := children.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: children is %T", ErrInvalidJSON, children)
		}
		for i, x := range cs {
			op, err := childFromJSON(x)
			if err != nil {
				return nil, fmt.Errorf("child #%d: %w", i, err)
			}
			if op != nil {
				d.push(op)
			}
		}
	}
	return d, nil
}

// Returns nil for ops with no effect, like an empty insert.
func childFromJSON(v any) (*ChildOp, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: op is %T, want an object", ErrInvalidJSON, v)
	}
	if n, ok := m["delete"]; ok {
		count, err := toInt(n)
		if err != nil {
			return nil, fmt.Errorf("%w: delete: %w", ErrInvalidJSON, err)
		}
		if count <= 0 {
			return nil, nil
		}
		return &ChildOp{kind: KindDelete, count: count}, nil
	}
	op := &ChildOp{}
	switch typ := m["type"]; typ {
	case "insert":
		switch ins := m["insert"].(type) {
		case string:
			if ins == "" {
				return nil, nil
			}
			op.kind, op.text = KindText, []rune(ins)
		case []any:
			if len(ins) == 0 {
				return nil, nil
			}
			op.kind = KindInsert
			for _, x := range ins {
				item, err := valueFromJSON(x)
				if err != nil {
					return nil, err
				}
				op.items = append(op.items, item)
			}
		default:
			return nil, fmt.Errorf("%w: insert is %T", ErrInvalidJSON, ins)
		}
	case "retain":
		count, err := toInt(m["retain"])
		if err != nil {
			return nil, fmt.Errorf("%w: retain: %w", ErrInvalidJSON, err)
		}
		if count <= 0 {
			return nil, nil
		}
		op.kind, op.count = KindRetain, count
	case "modify":
		value, err := FromJSON(m["value"])
		if err != nil {
			return nil, err
		}
		op.kind, op.value = KindModify, value
	default:
		return nil, fmt.Errorf("%w: unknown op type %v", ErrInvalidJSON, typ)
	}
	if f, ok := m["format"]; ok && f != nil {
		fm, ok := f.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: format is %T", ErrInvalidJSON, f)
		}
		op.format = make(Format, len(fm))
		for k, x := range fm {
			val, err := valueFromJSON(x)
			if err != nil {
				return nil, err
			}
			op.format[k] = val
		}
		op.format = op.format.Clone()
	}
	attribution, err := attributionFromJSON(m["attribution"])
	if err != nil {
		return nil, err
	}
	op.attribution = attribution
	return op, nil
}

func attrFromJSON(v any) (*AttrOp, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: attr op is %T, want an object", ErrInvalidJSON, v)
	}
	op := &AttrOp{}
	switch typ := m["type"]; typ {
	case "insert":
		value, err := valueFromJSON(m["value"])
		if err != nil {
			return nil, err
		}
		op.kind, op.value = AttrSet, value
	case "modify":
		value, err := FromJSON(m["value"])
		if err != nil {
			return nil, err
		}
		return &AttrOp{kind: AttrModify, delta: value}, nil
	case "delete":
		op.kind = AttrDelete
	default:
		return nil, fmt.Errorf("%w: unknown attr op type %v", ErrInvalidJSON, typ)
	}
	if prev, ok := m["prevValue"]; ok {
		value, err := valueFromJSON(prev)
		if err != nil {
			return nil, err
		}
		op.prevValue, op.hasPrev = value, true
	}
	attribution, err := attributionFromJSON(m["attribution"])
	if err != nil {
		return nil, err
	}
	op.attribution = attribution
	return op, nil
}

func attributionFromJSON(v any) (*Attribution, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: attribution is %T", ErrInvalidJSON, v)
	}
	a := &Attribution{}
	for key, x := range m {
		if err := a.set(key, x); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	}
	return a.Clone(), nil
}

// Objects tagged as deltas become embedded deltas.
func valueFromJSON(v any) (any, error) {
	if m, ok := v.(map[string]any); ok && m["type"] == "delta" {
		return FromJSON(m)
	}
	return v, nil
}
