package runtime

import (
	"strconv"
	"strings"
)

// Convert casts v into the named type. Impossible conversions fail with an
// invalid-cast error.
func Convert(v Value, typeName string) (Value, error) {
	switch typeName {
	case "int":
		return toInt(v)
	case "float":
		return toFloat(v)
	case "string":
		return String(v.String()), nil
	case "bool":
		return Bool(Truthy(v)), nil
	case "list":
		return toList(v)
	case "tuple":
		items, err := collect(v)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case "set":
		return toSet(v)
	}
	return nil, NewInvalidCast(v.Kind(), typeName)
}

func toInt(v Value) (Value, error) {
	switch t := v.(type) {
	case Int:
		return t, nil
	case Float:
		return Int(t), nil
	case Bool:
		if t {
			return Int(1), nil
		}
		return Int(0), nil
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		if err != nil {
			return nil, NewInvalidCast(KindString, "int")
		}
		return Int(n), nil
	}
	return nil, NewInvalidCast(v.Kind(), "int")
}

func toFloat(v Value) (Value, error) {
	switch t := v.(type) {
	case Int:
		return Float(t), nil
	case Float:
		return t, nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		if err != nil {
			return nil, NewInvalidCast(KindString, "float")
		}
		return Float(f), nil
	}
	return nil, NewInvalidCast(v.Kind(), "float")
}

func toList(v Value) (Value, error) {
	items, err := collect(v)
	if err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

func toSet(v Value) (Value, error) {
	items, err := collect(v)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	for _, item := range items {
		if err := set.Add(item); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// collect drains any iterable value into a slice.
func collect(v Value) ([]Value, error) {
	iter, err := NewIterator(v)
	if err != nil {
		return nil, NewInvalidCast(v.Kind(), "list")
	}
	var items []Value
	for {
		item, ok := iter.Next()
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// ParseNumber decodes a numeric literal token.
func ParseNumber(raw string) (Value, error) {
	if strings.ContainsAny(raw, ".eE") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, NewInvalidNumberLiteral(raw)
		}
		return Float(f), nil
	}
	n, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return nil, NewInvalidNumberLiteral(raw)
	}
	return Int(n), nil
}
