package std

import (
	"fmt"
	"strings"

	"github.com/bramadityaw/elk/runtime"
)

// Default returns the registry the shell ships with.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range []*Binding{
		{Name: "len", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: stdLen},
		{Name: "str", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: stdStr},
		{Name: "type", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: stdType},
		{Name: "append", MinArgs: 2, MaxArgs: -1, VariadicStart: 1, Func: stdAppend},
		{Name: "keys", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: stdKeys},
		{Name: "join", MinArgs: 1, MaxArgs: 2, VariadicStart: -1, Func: stdJoin},
		{Name: "split", MinArgs: 1, MaxArgs: 2, VariadicStart: -1, Func: stdSplit},
		{Name: "lines", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: stdLines},
		{Name: "map", MinArgs: 1, MaxArgs: 2, VariadicStart: -1, AcceptsClosure: true, Func: stdMap},
		{Name: "filter", MinArgs: 1, MaxArgs: 2, VariadicStart: -1, AcceptsClosure: true, Func: stdFilter},
		{Name: "each", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, AcceptsClosure: true, Func: stdEach},
		{Name: "print", MinArgs: 0, MaxArgs: -1, VariadicStart: 0, Func: stdPrint},
		{Name: "println", MinArgs: 0, MaxArgs: -1, VariadicStart: 0, Func: stdPrintln},
		{Name: "int", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: cast("int")},
		{Name: "float", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: cast("float")},
		{Name: "bool", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: cast("bool")},
		{Name: "string", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: cast("string")},
		{Name: "list", MinArgs: 1, MaxArgs: 1, VariadicStart: -1, Func: cast("list")},
	} {
		r.Register(b)
	}
	return r
}

// cast adapts the value domain's conversion table to a binding.
func cast(typeName string) Func {
	return func(in *Invocation) (runtime.Value, error) {
		return runtime.Convert(in.Args[0], typeName)
	}
}

func stdLen(in *Invocation) (runtime.Value, error) {
	switch v := in.Args[0].(type) {
	case runtime.String:
		return runtime.Int(len([]rune(string(v)))), nil
	case *runtime.List:
		return runtime.Int(len(v.Items)), nil
	case runtime.Tuple:
		return runtime.Int(len(v)), nil
	case *runtime.Dict:
		return runtime.Int(v.Len()), nil
	case *runtime.SetValue:
		return runtime.Int(v.Len()), nil
	case runtime.Range:
		return runtime.Int(v.Len()), nil
	}
	return nil, runtime.NewInvalidOperation("len", in.Args[0].Kind())
}

func stdStr(in *Invocation) (runtime.Value, error) {
	return runtime.String(in.Args[0].String()), nil
}

func stdType(in *Invocation) (runtime.Value, error) {
	return runtime.TypeValue{Name: in.Args[0].Kind().String()}, nil
}

func stdAppend(in *Invocation) (runtime.Value, error) {
	list, ok := in.Args[0].(*runtime.List)
	if !ok {
		return nil, runtime.NewInvalidOperation("append", in.Args[0].Kind())
	}
	list.Items = append(list.Items, in.Args[1:]...)
	return list, nil
}

func stdKeys(in *Invocation) (runtime.Value, error) {
	dict, ok := in.Args[0].(*runtime.Dict)
	if !ok {
		return nil, runtime.NewInvalidOperation("keys", in.Args[0].Kind())
	}
	return runtime.NewList(dict.Keys()...), nil
}

func stdJoin(in *Invocation) (runtime.Value, error) {
	sep := ""
	if len(in.Args) > 1 {
		sep = in.Args[1].String()
	}
	iter, err := runtime.NewIterator(in.Args[0])
	if err != nil {
		return nil, err
	}
	var parts []string
	for {
		item, ok := iter.Next()
		if !ok {
			break
		}
		parts = append(parts, item.String())
	}
	return runtime.String(strings.Join(parts, sep)), nil
}

func stdSplit(in *Invocation) (runtime.Value, error) {
	s, ok := in.Args[0].(runtime.String)
	if !ok {
		return nil, runtime.NewInvalidOperation("split", in.Args[0].Kind())
	}
	sep := " "
	if len(in.Args) > 1 {
		sep = in.Args[1].String()
	}
	parts := strings.Split(string(s), sep)
	items := make([]runtime.Value, len(parts))
	for i, part := range parts {
		items[i] = runtime.String(part)
	}
	return runtime.NewList(items...), nil
}

func stdLines(in *Invocation) (runtime.Value, error) {
	if pipe, ok := in.Args[0].(*runtime.Pipe); ok {
		return pipe.Drain(), nil
	}
	s, ok := in.Args[0].(runtime.String)
	if !ok {
		return nil, runtime.NewInvalidOperation("lines", in.Args[0].Kind())
	}
	parts := strings.Split(strings.TrimRight(string(s), "\n"), "\n")
	items := make([]runtime.Value, len(parts))
	for i, part := range parts {
		items[i] = runtime.String(part)
	}
	return runtime.NewList(items...), nil
}

// apply runs the attached closure or a reference argument over one element.
func apply(in *Invocation, extraRef runtime.Value, element runtime.Value) (runtime.Value, error) {
	if in.HasClosure {
		return in.Caller.CallClosure(element)
	}
	ref, ok := extraRef.(*runtime.FunctionRef)
	if !ok {
		return nil, runtime.NewExpectedClosure("map")
	}
	return in.Caller.CallRef(ref, element)
}

func stdMap(in *Invocation) (runtime.Value, error) {
	iter, err := runtime.NewIterator(in.Args[0])
	if err != nil {
		return nil, err
	}
	var extra runtime.Value
	if len(in.Args) > 1 {
		extra = in.Args[1]
	}
	out := runtime.NewList()
	for {
		item, ok := iter.Next()
		if !ok {
			return out, nil
		}
		mapped, err := apply(in, extra, item)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, mapped)
	}
}

func stdFilter(in *Invocation) (runtime.Value, error) {
	iter, err := runtime.NewIterator(in.Args[0])
	if err != nil {
		return nil, err
	}
	var extra runtime.Value
	if len(in.Args) > 1 {
		extra = in.Args[1]
	}
	out := runtime.NewList()
	for {
		item, ok := iter.Next()
		if !ok {
			return out, nil
		}
		keep, err := apply(in, extra, item)
		if err != nil {
			return nil, err
		}
		if runtime.Truthy(keep) {
			out.Items = append(out.Items, item)
		}
	}
}

func stdEach(in *Invocation) (runtime.Value, error) {
	iter, err := runtime.NewIterator(in.Args[0])
	if err != nil {
		return nil, err
	}
	for {
		item, ok := iter.Next()
		if !ok {
			return runtime.Nil{}, nil
		}
		if _, err := in.Caller.CallClosure(item); err != nil {
			return nil, err
		}
	}
}

func stdPrint(in *Invocation) (runtime.Value, error) {
	parts := make([]string, len(in.Args))
	for i, arg := range in.Args {
		parts[i] = arg.String()
	}
	fmt.Fprint(in.Stdout, strings.Join(parts, " "))
	return runtime.Nil{}, nil
}

func stdPrintln(in *Invocation) (runtime.Value, error) {
	parts := make([]string, len(in.Args))
	for i, arg := range in.Args {
		parts[i] = arg.String()
	}
	fmt.Fprintln(in.Stdout, strings.Join(parts, " "))
	return runtime.Nil{}, nil
}
