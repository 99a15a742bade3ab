package tflite

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// FileIdentifier is the FlatBuffers file identifier of a TFLite model.
const FileIdentifier = "TFL3"

// Vtable slots of the Model table.
const (
	modelVersion       = 4
	modelOperatorCodes = 6
	modelDescription   = 10
)

// Vtable slots of the OperatorCode table.
const (
	opCodeDeprecatedBuiltinCode = 4
	opCodeCustomCode            = 6
	opCodeVersion               = 8
	opCodeBuiltinCode           = 10
)

// Model is a read-only view over the root table of a TFLite model.
type Model struct {
	_tab flatbuffers.Table
}

// GetRootAsModel returns the root Model table of buf.
func GetRootAsModel(buf []byte, offset flatbuffers.UOffsetT) *Model {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &Model{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *Model) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Model) Version() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(modelVersion))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Model) OperatorCodes(obj *OperatorCode, j int) bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(modelOperatorCodes))
	if o != 0 {
		x := rcv._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = rcv._tab.Indirect(x)
		obj.Init(rcv._tab.Bytes, x)
		return true
	}
	return false
}

func (rcv *Model) OperatorCodesLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(modelOperatorCodes))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

// operatorCodesInBounds reports whether the whole operator_codes vector lies
// inside the buffer. The length is read from the file and must be checked
// before it sizes anything.
func (rcv *Model) operatorCodesInBounds() bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(modelOperatorCodes))
	if o == 0 {
		return true
	}
	start := uint64(rcv._tab.Vector(o))
	n := uint64(rcv._tab.VectorLen(o))
	return start+n*flatbuffers.SizeUOffsetT <= uint64(len(rcv._tab.Bytes))
}

func (rcv *Model) Description() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(modelDescription))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

// OperatorCode is a read-only view over one entry of Model.operator_codes.
type OperatorCode struct {
	_tab flatbuffers.Table
}

func (rcv *OperatorCode) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *OperatorCode) DeprecatedBuiltinCode() int8 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(opCodeDeprecatedBuiltinCode))
	if o != 0 {
		return rcv._tab.GetInt8(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *OperatorCode) CustomCode() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(opCodeCustomCode))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *OperatorCode) Version() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(opCodeVersion))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}
	return 1
}

func (rcv *OperatorCode) BuiltinCode() int32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(opCodeBuiltinCode))
	if o != 0 {
		return rcv._tab.GetInt32(o + rcv._tab.Pos)
	}
	return 0
}

// HasCustomCode reports whether the custom_code field is present.
// An empty custom_code string still marks a custom operator.
func (rcv *OperatorCode) HasCustomCode() bool {
	return rcv._tab.Offset(opCodeCustomCode) != 0
}
