package runtime

import (
	"math"
	"strings"
)

// Op enumerates the binary operator kinds the value domain can apply.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
	OpContains
)

var opNames = map[Op]string{
	OpAdd:          "+",
	OpSub:          "-",
	OpMul:          "*",
	OpDiv:          "/",
	OpMod:          "%",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpAnd:          "and",
	OpOr:           "or",
	OpContains:     "in",
}

func (o Op) String() string { return opNames[o] }

// Apply evaluates op over a tag pair. Undefined combinations fail with an
// invalid-operation error.
func Apply(op Op, left, right Value) (Value, error) {
	switch op {
	case OpEqual:
		return Bool(Equal(left, right)), nil
	case OpNotEqual:
		return Bool(!Equal(left, right)), nil
	case OpAnd:
		return Bool(Truthy(left) && Truthy(right)), nil
	case OpOr:
		return Bool(Truthy(left) || Truthy(right)), nil
	case OpContains:
		return contains(left, right)
	}

	switch l := left.(type) {
	case Int:
		switch r := right.(type) {
		case Int:
			return intOp(op, l, r)
		case Float:
			return floatOp(op, Float(l), r)
		}
	case Float:
		switch r := right.(type) {
		case Int:
			return floatOp(op, l, Float(r))
		case Float:
			return floatOp(op, l, r)
		}
	case String:
		switch r := right.(type) {
		case String:
			return stringOp(op, l, r)
		case Int:
			if op == OpMul {
				return String(strings.Repeat(string(l), int(r))), nil
			}
		}
	case *List:
		if r, ok := right.(*List); ok && op == OpAdd {
			items := append(append([]Value(nil), l.Items...), r.Items...)
			return NewList(items...), nil
		}
	}
	return nil, NewInvalidBinaryOperation(op.String(), left.Kind(), right.Kind())
}

func intOp(op Op, l, r Int) (Value, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return nil, NewError("division by zero")
		}
		return l / r, nil
	case OpMod:
		if r == 0 {
			return nil, NewError("division by zero")
		}
		return l % r, nil
	case OpGreater:
		return Bool(l > r), nil
	case OpGreaterEqual:
		return Bool(l >= r), nil
	case OpLess:
		return Bool(l < r), nil
	case OpLessEqual:
		return Bool(l <= r), nil
	}
	return nil, NewInvalidBinaryOperation(op.String(), KindInt, KindInt)
}

func floatOp(op Op, l, r Float) (Value, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		return l / r, nil
	case OpMod:
		return Float(math.Mod(float64(l), float64(r))), nil
	case OpGreater:
		return Bool(l > r), nil
	case OpGreaterEqual:
		return Bool(l >= r), nil
	case OpLess:
		return Bool(l < r), nil
	case OpLessEqual:
		return Bool(l <= r), nil
	}
	return nil, NewInvalidBinaryOperation(op.String(), KindFloat, KindFloat)
}

func stringOp(op Op, l, r String) (Value, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpGreater:
		return Bool(l > r), nil
	case OpGreaterEqual:
		return Bool(l >= r), nil
	case OpLess:
		return Bool(l < r), nil
	case OpLessEqual:
		return Bool(l <= r), nil
	}
	return nil, NewInvalidBinaryOperation(op.String(), KindString, KindString)
}

// contains implements `item in container` over list, tuple, string, dict
// keys, set and range.
func contains(item, container Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		for _, v := range c.Items {
			if Equal(item, v) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case Tuple:
		for _, v := range c {
			if Equal(item, v) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case String:
		sub, ok := item.(String)
		if !ok {
			return nil, NewInvalidBinaryOperation("in", item.Kind(), KindString)
		}
		return Bool(strings.Contains(string(c), string(sub))), nil
	case *Dict:
		_, ok := c.Get(item)
		return Bool(ok), nil
	case *SetValue:
		return Bool(c.Contains(item)), nil
	case Range:
		n, ok := item.(Int)
		if !ok {
			return Bool(false), nil
		}
		return Bool(int64(n) >= c.From && int64(n) < c.To), nil
	}
	return nil, NewInvalidBinaryOperation("in", item.Kind(), container.Kind())
}

// Negate applies unary minus.
func Negate(v Value) (Value, error) {
	switch t := v.(type) {
	case Int:
		return -t, nil
	case Float:
		return -t, nil
	}
	return nil, NewInvalidOperation("-", v.Kind())
}

// Not applies logical negation.
func Not(v Value) Value { return Bool(!Truthy(v)) }
