package runtime

import "fmt"

// Index reads an element of a list, tuple, dictionary, string or range.
// A range index slices lists and strings.
func Index(object, index Value) (Value, error) {
	switch obj := object.(type) {
	case *List:
		if r, ok := index.(Range); ok {
			items, err := sliceBounds(len(obj.Items), r)
			if err != nil {
				return nil, err
			}
			return NewList(append([]Value(nil), obj.Items[items[0]:items[1]]...)...), nil
		}
		i, err := indexInt(index, len(obj.Items))
		if err != nil {
			return nil, err
		}
		return obj.Items[i], nil
	case Tuple:
		i, err := indexInt(index, len(obj))
		if err != nil {
			return nil, err
		}
		return obj[i], nil
	case String:
		runes := []rune(string(obj))
		if r, ok := index.(Range); ok {
			bounds, err := sliceBounds(len(runes), r)
			if err != nil {
				return nil, err
			}
			return String(runes[bounds[0]:bounds[1]]), nil
		}
		i, err := indexInt(index, len(runes))
		if err != nil {
			return nil, err
		}
		return String(runes[i]), nil
	case *Dict:
		value, ok := obj.Get(index)
		if !ok {
			return nil, NewNotFound(fmt.Sprintf("key %s", index.String()))
		}
		return value, nil
	case Range:
		i, err := indexInt(index, int(obj.Len()))
		if err != nil {
			return nil, err
		}
		return Int(obj.From + int64(i)), nil
	case *Struct:
		name, ok := index.(String)
		if !ok {
			return nil, NewInvalidOperation("index", index.Kind())
		}
		value, found := obj.Field(string(name))
		if !found {
			return nil, NewNotFound(fmt.Sprintf("field %s", name))
		}
		return value, nil
	}
	return nil, NewInvalidOperation("index", object.Kind())
}

// SetIndex writes an element of a list or dictionary by indexed
// assignment.
func SetIndex(object, index, value Value) error {
	switch obj := object.(type) {
	case *List:
		i, err := indexInt(index, len(obj.Items))
		if err != nil {
			return err
		}
		obj.Items[i] = value
		return nil
	case *Dict:
		return obj.Set(index, value)
	case *Struct:
		name, ok := index.(String)
		if !ok {
			return NewInvalidOperation("index", index.Kind())
		}
		for i, field := range obj.Fields {
			if field == string(name) {
				obj.Values[i] = value
				return nil
			}
		}
		return NewNotFound(fmt.Sprintf("field %s", name))
	}
	return NewInvalidOperation("index assignment", object.Kind())
}

// indexInt validates an integer index against length, counting negative
// indexes from the end.
func indexInt(index Value, length int) (int, error) {
	n, ok := index.(Int)
	if !ok {
		return 0, NewInvalidOperation("index", index.Kind())
	}
	i := int(n)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, NewNotFound(fmt.Sprintf("index %d", int(n)))
	}
	return i, nil
}

func sliceBounds(length int, r Range) ([2]int, error) {
	from, to := int(r.From), int(r.To)
	if from < 0 {
		from += length
	}
	if to < 0 {
		to += length
	}
	if from < 0 || to > length || from > to {
		return [2]int{}, NewNotFound(fmt.Sprintf("range %s", r))
	}
	return [2]int{from, to}, nil
}
