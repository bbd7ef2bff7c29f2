package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DecodeInstrs reconstructs a typed BytecodeInstr stream from bytes
// previously produced by EncodeInstrs, consulting the same
// opcodeVariableTable the encoder used.
func DecodeInstrs(data []byte) ([]BytecodeInstr, error) {
	r := bytes.NewReader(data)
	var out []BytecodeInstr
	for r.Len() > 0 {
		ins, err := decodeOne(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}

func decodeOne(r *bytes.Reader) (BytecodeInstr, error) {
	var ins BytecodeInstr
	opByte, err := r.ReadByte()
	if err != nil {
		return ins, fmt.Errorf("bytecode: truncated opcode: %w", err)
	}
	ins.Op = Opcode(opByte)
	if ins.Op >= opcodeCount {
		return ins, fmt.Errorf("bytecode: unknown opcode %d", opByte)
	}
	hasDst, err := r.ReadByte()
	if err != nil {
		return ins, fmt.Errorf("bytecode: truncated has_dst flag: %w", err)
	}
	ins.HasDst = hasDst != 0

	readI32 := func(dst *int32) error { return binary.Read(r, binary.LittleEndian, dst) }
	fields := []*int32{&ins.Dst, &ins.Src, &ins.Lhs, &ins.Rhs, &ins.ConstIdx, &ins.FuncIdx, &ins.FieldIdx, &ins.TypeID, &ins.Target, &ins.CatchTarget, &ins.Default}
	for _, f := range fields {
		if err := readI32(f); err != nil {
			return ins, fmt.Errorf("bytecode: truncated operand for %s: %w", ins.Op, err)
		}
	}
	arith, _ := r.ReadByte()
	cmp, _ := r.ReadByte()
	unary, err := r.ReadByte()
	if err != nil {
		return ins, fmt.Errorf("bytecode: truncated op-kind bytes for %s: %w", ins.Op, err)
	}
	ins.ArithOp, ins.CmpOp, ins.UnaryOp = ArithOp(arith), CmpOp(cmp), UnaryOpKind(unary)

	shape := shapeFor(ins.Op)
	if shape.hasFuncName {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return ins, fmt.Errorf("bytecode: truncated func name length for %s: %w", ins.Op, err)
		}
		name := make([]byte, nameLen)
		if _, err := r.Read(name); err != nil {
			return ins, fmt.Errorf("bytecode: truncated func name for %s: %w", ins.Op, err)
		}
		ins.FuncName = string(name)
	}
	if shape.hasArgs {
		var count uint16
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return ins, fmt.Errorf("bytecode: truncated arg count for %s: %w", ins.Op, err)
		}
		ins.Args = make([]int32, count)
		for i := range ins.Args {
			if err := readI32(&ins.Args[i]); err != nil {
				return ins, fmt.Errorf("bytecode: truncated arg %d for %s: %w", i, ins.Op, err)
			}
		}
	}
	if shape.hasCases {
		var count uint16
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return ins, fmt.Errorf("bytecode: truncated case count for %s: %w", ins.Op, err)
		}
		ins.Cases = make([]SwitchCase, count)
		for i := range ins.Cases {
			if err := readI32(&ins.Cases[i].ConstIdx); err != nil {
				return ins, err
			}
			if err := readI32(&ins.Cases[i].Target); err != nil {
				return ins, err
			}
		}
	}
	return ins, nil
}
