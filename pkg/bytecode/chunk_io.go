package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Header layout per spec §6.1: signature byte 0x1B, "Lua", version 0x51,
// format version 0, endianness flag, int size, size_t size, instruction
// size (4), number size (8), integral-number flag (0).
const (
	signatureByte   = 0x1B
	versionByte     = 0x51 // Lua 5.1
	formatVersion   = 0
	runtimeIntSize  = 4
	runtimeSizeT    = 8
	runtimeInstrSz  = 4
	runtimeNumberSz = 8
	integralFlag    = 0 // numbers are doubles, not integers
)

var chunkSignature = [4]byte{signatureByte, 'L', 'u', 'a'}

// ErrBadHeader is returned when a chunk's header fields mismatch the
// runtime's own sizes (§6.1: "The loader MUST reject chunks whose header
// fields mismatch the runtime's own sizes").
var ErrBadHeader = errors.New("bytecode: chunk header incompatible with this runtime")

// Dump serializes proto as a top-level chunk: the §6.1 header followed by
// the recursively-serialized prototype body. Always written
// little-endian; Load reads the endianness flag back out of the header.
func Dump(w io.Writer, proto *FunctionPrototype) error {
	bw := &byteWriter{w: w}
	bw.writeBytes(chunkSignature[:])
	bw.writeByte(versionByte)
	bw.writeByte(formatVersion)
	bw.writeByte(1) // endianness: 1 = little-endian
	bw.writeByte(runtimeIntSize)
	bw.writeByte(runtimeSizeT)
	bw.writeByte(runtimeInstrSz)
	bw.writeByte(runtimeNumberSz)
	bw.writeByte(integralFlag)
	if bw.err != nil {
		return bw.err
	}
	dumpPrototype(bw, proto)
	return bw.err
}

// Load deserializes a chunk produced by Dump (or any producer following
// the §6.1 format) into its top-level FunctionPrototype.
func Load(r io.Reader) (*FunctionPrototype, error) {
	br := &byteReader{r: r}
	var sig [4]byte
	br.readBytes(sig[:])
	if br.err != nil {
		return nil, br.err
	}
	if sig != chunkSignature {
		return nil, ErrBadHeader
	}
	version := br.readByte()
	format := br.readByte()
	endian := br.readByte()
	intSize := br.readByte()
	sizeT := br.readByte()
	instrSize := br.readByte()
	numberSize := br.readByte()
	_ = br.readByte() // integral flag: accepted but unused (we only support doubles)
	if br.err != nil {
		return nil, br.err
	}
	if version != versionByte || format != formatVersion {
		return nil, ErrBadHeader
	}
	if endian != 1 {
		// This runtime only produces little-endian chunks and, per §6.1,
		// is not required to support cross-architecture portability.
		return nil, ErrBadHeader
	}
	if intSize != runtimeIntSize || sizeT != runtimeSizeT ||
		instrSize != runtimeInstrSz || numberSize != runtimeNumberSz {
		return nil, ErrBadHeader
	}
	proto := loadPrototype(br)
	if br.err != nil {
		return nil, br.err
	}
	return proto, nil
}

func dumpPrototype(bw *byteWriter, p *FunctionPrototype) {
	bw.writeString(p.Source)
	bw.writeInt32(int32(p.LineDefined))
	bw.writeInt32(int32(p.LastLineDefined))
	bw.writeByte(byte(p.NumUpvalues))
	bw.writeByte(byte(p.NumParams))
	if p.IsVararg {
		bw.writeByte(1)
	} else {
		bw.writeByte(0)
	}
	bw.writeByte(byte(p.MaxStackSize))

	bw.writeInt32(int32(len(p.Code)))
	for _, ins := range p.Code {
		bw.writeUint32(ins.Encode())
	}

	bw.writeInt32(int32(len(p.Constants)))
	for _, k := range p.Constants {
		bw.writeByte(byte(k.Tag))
		switch k.Tag {
		case ConstNil:
		case ConstBool:
			if k.B {
				bw.writeByte(1)
			} else {
				bw.writeByte(0)
			}
		case ConstNumber:
			bw.writeFloat64(k.N)
		case ConstString:
			bw.writeString(k.S)
		}
	}

	bw.writeInt32(int32(len(p.Protos)))
	for _, sub := range p.Protos {
		dumpPrototype(bw, sub)
	}

	bw.writeInt32(int32(len(p.Upvalues)))
	for _, u := range p.Upvalues {
		if u.FromParentLocal {
			bw.writeByte(1)
		} else {
			bw.writeByte(0)
		}
		bw.writeInt32(int32(u.ParentIndex))
	}

	bw.writeInt32(int32(len(p.LineInfo)))
	for _, l := range p.LineInfo {
		bw.writeInt32(l)
	}

	bw.writeInt32(int32(len(p.LocVars)))
	for _, lv := range p.LocVars {
		bw.writeString(lv.Name)
		bw.writeInt32(lv.StartPC)
		bw.writeInt32(lv.EndPC)
	}

	bw.writeInt32(int32(len(p.UpvalueNames)))
	for _, n := range p.UpvalueNames {
		bw.writeString(n)
	}
}

func loadPrototype(br *byteReader) *FunctionPrototype {
	p := &FunctionPrototype{}
	p.Source = br.readString()
	p.LineDefined = int(br.readInt32())
	p.LastLineDefined = int(br.readInt32())
	p.NumUpvalues = int(br.readByte())
	p.NumParams = int(br.readByte())
	p.IsVararg = br.readByte() != 0
	p.MaxStackSize = int(br.readByte())

	n := int(br.readInt32())
	p.Code = make([]Instruction, n)
	for i := range p.Code {
		p.Code[i] = Decode(br.readUint32())
	}

	n = int(br.readInt32())
	p.Constants = make([]Constant, n)
	for i := range p.Constants {
		tag := ConstantTag(br.readByte())
		switch tag {
		case ConstNil:
			p.Constants[i] = Constant{Tag: ConstNil}
		case ConstBool:
			p.Constants[i] = Constant{Tag: ConstBool, B: br.readByte() != 0}
		case ConstNumber:
			p.Constants[i] = Constant{Tag: ConstNumber, N: br.readFloat64()}
		case ConstString:
			p.Constants[i] = Constant{Tag: ConstString, S: br.readString()}
		default:
			br.fail(ErrBadHeader)
			return p
		}
	}

	n = int(br.readInt32())
	p.Protos = make([]*FunctionPrototype, n)
	for i := range p.Protos {
		p.Protos[i] = loadPrototype(br)
	}

	n = int(br.readInt32())
	p.Upvalues = make([]UpvalueDesc, n)
	for i := range p.Upvalues {
		p.Upvalues[i].FromParentLocal = br.readByte() != 0
		p.Upvalues[i].ParentIndex = int(br.readInt32())
	}

	n = int(br.readInt32())
	p.LineInfo = make([]int32, n)
	for i := range p.LineInfo {
		p.LineInfo[i] = br.readInt32()
	}

	n = int(br.readInt32())
	p.LocVars = make([]LocVar, n)
	for i := range p.LocVars {
		p.LocVars[i].Name = br.readString()
		p.LocVars[i].StartPC = br.readInt32()
		p.LocVars[i].EndPC = br.readInt32()
	}

	n = int(br.readInt32())
	p.UpvalueNames = make([]string, n)
	for i := range p.UpvalueNames {
		p.UpvalueNames[i] = br.readString()
	}

	return p
}

// byteWriter/byteReader are tiny sticky-error helpers so the recursive
// dump/load walk above can read like straight-line code instead of
// threading an error return through every field. Grounded on the same
// "accumulate then check once" shape as bufio.Scanner's error model.
type byteWriter struct {
	w   io.Writer
	err error
}

func (bw *byteWriter) writeBytes(b []byte) {
	if bw.err != nil {
		return
	}
	_, bw.err = bw.w.Write(b)
}
func (bw *byteWriter) writeByte(b byte) { bw.writeBytes([]byte{b}) }
func (bw *byteWriter) writeUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	bw.writeBytes(buf[:])
}
func (bw *byteWriter) writeInt32(v int32) { bw.writeUint32(uint32(v)) }
func (bw *byteWriter) writeFloat64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	bw.writeBytes(buf[:])
}
func (bw *byteWriter) writeString(s string) {
	bw.writeInt32(int32(len(s)))
	bw.writeBytes([]byte(s))
}

type byteReader struct {
	r   io.Reader
	err error
}

func (br *byteReader) fail(err error) {
	if br.err == nil {
		br.err = err
	}
}
func (br *byteReader) readBytes(b []byte) {
	if br.err != nil {
		return
	}
	_, br.err = io.ReadFull(br.r, b)
}
func (br *byteReader) readByte() byte {
	var b [1]byte
	br.readBytes(b[:])
	return b[0]
}
func (br *byteReader) readUint32() uint32 {
	var buf [4]byte
	br.readBytes(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}
func (br *byteReader) readInt32() int32 { return int32(br.readUint32()) }
func (br *byteReader) readFloat64() float64 {
	var buf [8]byte
	br.readBytes(buf[:])
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}
func (br *byteReader) readString() string {
	n := br.readInt32()
	if br.err != nil || n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	br.readBytes(buf)
	return string(buf)
}

// Buffer-backed round trip convenience used by tests and by loaders that
// already hold the whole chunk in memory.
func DumpToBytes(proto *FunctionPrototype) ([]byte, error) {
	var buf bytes.Buffer
	if err := Dump(&buf, proto); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func LoadFromBytes(b []byte) (*FunctionPrototype, error) {
	return Load(bytes.NewReader(b))
}
