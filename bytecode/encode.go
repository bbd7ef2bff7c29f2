package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// opcodeVariable classifies, per opcode, which variable-length
// sections follow the fixed instruction header. Encoder and decoder
// both consult this single table so they cannot diverge (spec.md
// §4.5: "The encoder and decoder share a single opcode table").
type variableShape struct {
	hasFuncName bool
	hasArgs     bool
	hasCases    bool
}

var opcodeVariableTable = map[Opcode]variableShape{
	OpCallStatic: {hasFuncName: true, hasArgs: true},
	OpCallNative: {hasFuncName: true, hasArgs: true},
	OpCallVirt:   {hasFuncName: true, hasArgs: true},
	OpCallDyn:    {hasArgs: true},
	OpMakeClosure: {hasFuncName: true, hasArgs: true},
	OpCreateStruct: {hasFuncName: true, hasArgs: true},
	OpNewListWithCap: {hasArgs: true},
	OpSwitch: {hasCases: true},
	OpLoadGlobal:  {hasFuncName: true},
	OpStoreGlobal: {hasFuncName: true},
}

func shapeFor(op Opcode) variableShape { return opcodeVariableTable[op] }

// instrHeaderSize is the fixed footprint, in bytes, common to every
// instruction before its opcode-specific variable section.
const instrHeaderSize = 1 + 1 + 4*11 + 1 + 1 + 1

// EncodeInstrs serializes a function's instruction sequence to bytes.
// Jump Target fields are already relative offsets by the time codegen
// builds a BytecodeInstr (spec.md §4.5 "jump offsets are relative
// 32-bit signed values so generated code is position-independent
// within its function"); encoding does not recompute them.
func EncodeInstrs(instrs []BytecodeInstr) []byte {
	var buf bytes.Buffer
	for _, ins := range instrs {
		encodeOne(&buf, ins)
	}
	return buf.Bytes()
}

func encodeOne(buf *bytes.Buffer, ins BytecodeInstr) {
	buf.WriteByte(byte(ins.Op))
	if ins.HasDst {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	writeI32 := func(v int32) { binary.Write(buf, binary.LittleEndian, v) }
	writeI32(ins.Dst)
	writeI32(ins.Src)
	writeI32(ins.Lhs)
	writeI32(ins.Rhs)
	writeI32(ins.ConstIdx)
	writeI32(ins.FuncIdx)
	writeI32(ins.FieldIdx)
	writeI32(ins.TypeID)
	writeI32(ins.Target)
	writeI32(ins.CatchTarget)
	writeI32(ins.Default)
	buf.WriteByte(byte(ins.ArithOp))
	buf.WriteByte(byte(ins.CmpOp))
	buf.WriteByte(byte(ins.UnaryOp))

	shape := shapeFor(ins.Op)
	if shape.hasFuncName {
		name := []byte(ins.FuncName)
		binary.Write(buf, binary.LittleEndian, uint16(len(name)))
		buf.Write(name)
	}
	if shape.hasArgs {
		binary.Write(buf, binary.LittleEndian, uint16(len(ins.Args)))
		for _, a := range ins.Args {
			writeI32(a)
		}
	}
	if shape.hasCases {
		binary.Write(buf, binary.LittleEndian, uint16(len(ins.Cases)))
		for _, c := range ins.Cases {
			writeI32(c.ConstIdx)
			writeI32(c.Target)
		}
	}
}

// EncodeConstPool serializes the constant pool; DecodeConstPool
// reverses it exactly, satisfying spec.md §8's "Constant pool
// round-trip: decode(encode(pool)) = pool" property.
func EncodeConstPool(consts []ConstValue) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(consts)))
	for _, c := range consts {
		buf.WriteByte(byte(c.Tag))
		switch c.Tag {
		case ConstVoid:
		case ConstBool:
			if c.Bool {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case ConstInt:
			binary.Write(&buf, binary.LittleEndian, c.Int)
			binary.Write(&buf, binary.LittleEndian, uint16(len(c.Big)))
			buf.Write(c.Big)
		case ConstFloat:
			binary.Write(&buf, binary.LittleEndian, c.Float)
		case ConstChar:
			binary.Write(&buf, binary.LittleEndian, uint32(c.Char))
		case ConstString:
			s := []byte(c.Str)
			binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
			buf.Write(s)
		case ConstBytes:
			binary.Write(&buf, binary.LittleEndian, uint32(len(c.Bytes)))
			buf.Write(c.Bytes)
		}
	}
	return buf.Bytes()
}

func DecodeConstPool(data []byte) ([]ConstValue, error) {
	r := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("bytecode: truncated constant pool header: %w", err)
	}
	out := make([]ConstValue, 0, n)
	for i := uint32(0); i < n; i++ {
		tagByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bytecode: truncated constant %d: %w", i, err)
		}
		c := ConstValue{Tag: ConstTag(tagByte)}
		switch c.Tag {
		case ConstVoid:
		case ConstBool:
			b, _ := r.ReadByte()
			c.Bool = b != 0
		case ConstInt:
			binary.Read(r, binary.LittleEndian, &c.Int)
			var bigLen uint16
			binary.Read(r, binary.LittleEndian, &bigLen)
			if bigLen > 0 {
				c.Big = make([]byte, bigLen)
				r.Read(c.Big)
			}
		case ConstFloat:
			binary.Read(r, binary.LittleEndian, &c.Float)
		case ConstChar:
			var cp uint32
			binary.Read(r, binary.LittleEndian, &cp)
			c.Char = rune(cp)
		case ConstString:
			var l uint32
			binary.Read(r, binary.LittleEndian, &l)
			b := make([]byte, l)
			r.Read(b)
			c.Str = string(b)
		case ConstBytes:
			var l uint32
			binary.Read(r, binary.LittleEndian, &l)
			b := make([]byte, l)
			r.Read(b)
			c.Bytes = b
		default:
			return nil, fmt.Errorf("bytecode: unknown const tag %d at %d", tagByte, i)
		}
		out = append(out, c)
	}
	return out, nil
}

// internConst returns the pool index of c, appending it if no
// structurally-equal entry exists yet (spec.md §4.5 constant
// interning).
func internConst(pool *[]ConstValue, c ConstValue) int32 {
	for i, e := range *pool {
		if e.Equal(c) {
			return int32(i)
		}
	}
	*pool = append(*pool, c)
	return int32(len(*pool) - 1)
}
