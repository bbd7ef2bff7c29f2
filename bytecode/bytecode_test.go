package bytecode

import (
	"reflect"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestConstPoolRoundTrip(t *testing.T) {
	pool := []ConstValue{
		{Tag: ConstVoid},
		{Tag: ConstBool, Bool: true},
		{Tag: ConstInt, Int: 42},
		{Tag: ConstInt, Int: 0, Big: []byte{1, 2, 3, 4}},
		{Tag: ConstFloat, Float: 3.5},
		{Tag: ConstChar, Char: 'z'},
		{Tag: ConstString, Str: "hello, world"},
		{Tag: ConstBytes, Bytes: []byte{0xde, 0xad, 0xbe, 0xef}},
	}
	encoded := EncodeConstPool(pool)
	decoded, err := DecodeConstPool(encoded)
	assert(t, err == nil, "decode failed: %v", err)
	assert(t, reflect.DeepEqual(pool, decoded), "round trip mismatch: %+v != %+v", pool, decoded)
}

func TestInstrRoundTrip(t *testing.T) {
	instrs := []BytecodeInstr{
		{Op: OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 3},
		{Op: OpBinaryOp, Dst: 1, HasDst: true, Lhs: 0, Rhs: 0, ArithOp: Mul},
		{Op: OpJmpIfNot, Src: 1, Target: 5},
		{Op: OpCallStatic, Dst: 2, HasDst: true, FuncName: "fact", Args: []int32{1, 4}},
		{Op: OpSwitch, Src: 1, Default: 1, Cases: []SwitchCase{{ConstIdx: 0, Target: 2}, {ConstIdx: 1, Target: 3}}},
		{Op: OpReturnValue, Src: 2},
	}
	data := EncodeInstrs(instrs)
	decoded, err := DecodeInstrs(data)
	assert(t, err == nil, "decode failed: %v", err)
	assert(t, len(decoded) == len(instrs), "expected %d instrs, got %d", len(instrs), len(decoded))
	for i := range instrs {
		assert(t, reflect.DeepEqual(instrs[i], decoded[i]), "instr %d mismatch: %+v != %+v", i, instrs[i], decoded[i])
	}
}

func TestLoadRejectsCorruptedChecksum(t *testing.T) {
	file := &BytecodeFile{
		EntryIndex: 0,
		Constants:  []ConstValue{{Tag: ConstInt, Int: 7}},
		Functions: []BytecodeFunction{{
			Name:       "main",
			LocalCount: 1,
			Instrs: []BytecodeInstr{
				{Op: OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
				{Op: OpReturnValue, Src: 0},
			},
		}},
	}
	file.Checksum = ComputeChecksum(file)
	_, err := Load(file)
	assert(t, err == nil, "unexpected error for intact file: %v", err)

	file.Checksum++
	_, err = Load(file)
	assert(t, err != nil, "expected checksum mismatch to be rejected")
}

func TestLoadRejectsOutOfRangeJump(t *testing.T) {
	file := &BytecodeFile{
		EntryIndex: 0,
		Functions: []BytecodeFunction{{
			Name:       "main",
			LocalCount: 1,
			Instrs:     []BytecodeInstr{{Op: OpJmp, Target: 100}},
		}},
	}
	_, err := Load(file)
	assert(t, err != nil, "expected out-of-range jump to be rejected")
}

func TestLoadRejectsTooManyLocals(t *testing.T) {
	file := &BytecodeFile{
		EntryIndex: 0,
		Functions: []BytecodeFunction{{
			Name:       "main",
			LocalCount: MaxLocals + 1,
			Instrs:     []BytecodeInstr{{Op: OpReturn}},
		}},
	}
	_, err := Load(file)
	assert(t, err != nil, "expected oversized local_count to be rejected")
}

func TestLoadAcceptsWellFormedModule(t *testing.T) {
	file := &BytecodeFile{
		EntryIndex: 0,
		Constants:  []ConstValue{{Tag: ConstInt, Int: 7}},
		Functions: []BytecodeFunction{{
			Name:       "main",
			LocalCount: 1,
			Instrs: []BytecodeInstr{
				{Op: OpLoadConst, Dst: 0, HasDst: true, ConstIdx: 0},
				{Op: OpReturnValue, Src: 0},
			},
		}},
	}
	mod, err := Load(file)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, mod.FuncIndex["main"] == 0, "expected main at index 0")
}
