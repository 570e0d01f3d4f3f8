package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/bramadityaw/elk/runtime"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Page is the compiled artefact of one callable: a linear byte stream of
// instructions with an attached constant pool. Pages are immutable after
// emission.
type Page struct {
	Name string
	Code []byte
	// Consts is the constant pool, keyed by index.
	Consts []runtime.Value
	// NumParams is the number of argument slots a frame starts with.
	NumParams int
	// BaseSlots is the persistent global slot count a top-level page
	// assumes beneath its frame.
	BaseSlots int
	// HasClosureParam is set for pages whose signature declares a closure.
	HasClosureParam bool

	hash uint64
}

// NewPage creates an empty page under construction.
func NewPage(name string) *Page {
	return &Page{Name: name}
}

// AddConst interns a constant and returns its pool index. Scalar constants
// are deduplicated.
func (p *Page) AddConst(v runtime.Value) int {
	switch v.Kind() {
	case runtime.KindInt, runtime.KindFloat, runtime.KindString, runtime.KindBool, runtime.KindNil:
		for i, existing := range p.Consts {
			if existing == v {
				return i
			}
		}
	}
	p.Consts = append(p.Consts, v)
	return len(p.Consts) - 1
}

// Hash returns the page's debug identity, computed once over the emitted
// code bytes.
func (p *Page) Hash() uint64 {
	if p.hash == 0 && len(p.Code) > 0 {
		h, err := highwayhash.New64(hashKey)
		if err != nil {
			return 0
		}
		_, _ = h.Write(p.Code)
		p.hash = h.Sum64()
	}
	return p.hash
}

// ReadU16 decodes a 16-bit operand at offset.
func (p *Page) ReadU16(offset int) int {
	return int(binary.BigEndian.Uint16(p.Code[offset:]))
}

// ReadU32 decodes a 32-bit operand at offset.
func (p *Page) ReadU32(offset int) int {
	return int(binary.BigEndian.Uint32(p.Code[offset:]))
}

// Disassemble renders the page for debugging.
func (p *Page) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "page %s (%016x)\n", p.Name, p.Hash())
	for offset := 0; offset < len(p.Code); {
		op := Op(p.Code[offset])
		fmt.Fprintf(&b, "%04d %s", offset, op)
		offset++
		for _, width := range OperandWidths(op) {
			switch width {
			case 1:
				fmt.Fprintf(&b, " %d", p.Code[offset])
			case 2:
				fmt.Fprintf(&b, " %d", p.ReadU16(offset))
			case 4:
				fmt.Fprintf(&b, " %d", p.ReadU32(offset))
			}
			offset += width
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// OperandWidths returns the operand byte widths of op, in order.
func OperandWidths(op Op) []int {
	switch op {
	case PopArgs, Unpack, ExitBlock, Load, Store, LoadUpper, StoreUpper,
		BuildTuple, BuildList, BuildSet, BuildDict, BuildString,
		InvokeClosure, Cd:
		return []int{1}
	case Const, StructConst, GetField, LoadEnv, StoreEnv, Jump,
		JumpBackward, JumpIf, JumpIfNot, PopJumpIf, PopJumpIfNot, ForIter:
		return []int{2}
	case BuildListBig:
		return []int{4}
	case New:
		return []int{2, 1}
	case MakeClosure:
		return []int{2, 1}
	case Call, RootCall, MaybeRootCall, CallStd, RootCallStd,
		MaybeRootCallStd, CallProgram, RootCallProgram, MaybeRootCallProgram:
		return []int{2, 1, 1}
	case ExecProgram:
		return []int{1, 1}
	case ResolveArgumentsDynamically, DynamicCall, PushArgsToRef:
		return []int{1}
	default:
		return nil
	}
}
