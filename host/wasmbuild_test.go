package host

import (
	"bytes"
)

// A tiny WASM encoder for test modules that speak the module protocol
// without a guest toolchain.

const (
	valI32 = 0x7f
	valI64 = 0x7e

	opLocalGet = 0x20
	opI32Const = 0x41
	opI64Const = 0x42
	opCall     = 0x10
	opDrop     = 0x1a
	opEnd      = 0x0b
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint64(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint64(len(results)))...)
	return append(out, results...)
}

func i32c(v int32) []byte { return append([]byte{opI32Const}, sleb(int64(v))...) }

func i64c(v int64) []byte { return append([]byte{opI64Const}, sleb(v)...) }

func local(i int) []byte { return append([]byte{opLocalGet}, uleb(uint64(i))...) }

func call(i int) []byte { return append([]byte{opCall}, uleb(uint64(i))...) }

func packed(ptr, length uint32) int64 { return int64(uint64(ptr)<<32 | uint64(length)) }

func body(instrs ...[]byte) []byte {
	code := []byte{0x00} // no locals
	for _, in := range instrs {
		code = append(code, in...)
	}
	code = append(code, opEnd)
	return append(uleb(uint64(len(code))), code...)
}

type testImport struct {
	field string
	typ   int
}

type testFunc struct {
	export string
	typ    int
	code   []byte
}

type testModule struct {
	types   [][]byte
	imports []testImport
	funcs   []testFunc
	data    map[uint32]string
}

func (m *testModule) encode() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	buf.Write(section(1, vec(m.types...)))

	if len(m.imports) > 0 {
		imps := make([][]byte, len(m.imports))
		for i, im := range m.imports {
			imp := append(wasmName("modbridge_host"), wasmName(im.field)...)
			imps[i] = append(append(imp, 0x00), uleb(uint64(im.typ))...)
		}
		buf.Write(section(2, vec(imps...)))
	}

	fnTypes := make([][]byte, len(m.funcs))
	for i, f := range m.funcs {
		fnTypes[i] = uleb(uint64(f.typ))
	}
	buf.Write(section(3, vec(fnTypes...)))
	buf.Write(section(5, vec([]byte{0x00, 0x01})))

	exports := [][]byte{append(wasmName("memory"), 0x02, 0x00)}
	for i, f := range m.funcs {
		exp := append(wasmName(f.export), 0x00)
		exports = append(exports, append(exp, uleb(uint64(len(m.imports)+i))...))
	}
	buf.Write(section(7, vec(exports...)))

	codes := make([][]byte, len(m.funcs))
	for i, f := range m.funcs {
		codes[i] = f.code
	}
	buf.Write(section(10, vec(codes...)))

	if len(m.data) > 0 {
		var segs [][]byte
		for off, s := range m.data {
			seg := []byte{0x00}
			seg = append(seg, i32c(int32(off))...)
			seg = append(seg, opEnd)
			seg = append(seg, wasmName(s)...)
			segs = append(segs, seg)
		}
		buf.Write(section(11, vec(segs...)))
	}
	return buf.Bytes()
}

// Type indices shared by the test modules.
const (
	tAllocate = iota
	tDeallocate
	tOnLoad
	tOnUnload
	tCommand
	tEvent
	tInit
	tCreateCommand
	tReplyString
)

var protocolTypes = [][]byte{
	tAllocate:      funcType([]byte{valI32}, []byte{valI32}),
	tDeallocate:    funcType([]byte{valI32, valI32}, nil),
	tOnLoad:        funcType([]byte{valI64, valI32, valI32}, []byte{valI32}),
	tOnUnload:      funcType([]byte{valI64}, []byte{valI32}),
	tCommand:       funcType([]byte{valI64, valI32, valI32, valI32}, []byte{valI32}),
	tEvent:         funcType([]byte{valI64, valI32, valI32, valI64, valI64}, []byte{valI32}),
	tInit:          funcType([]byte{valI64, valI32, valI32, valI32, valI32}, []byte{valI32}),
	tCreateCommand: funcType([]byte{valI64, valI64, valI32, valI64, valI32, valI32, valI32}, []byte{valI32}),
	tReplyString:   funcType([]byte{valI64, valI64}, []byte{valI32}),
}

func protocolFuncs(onLoad, command []byte) []testFunc {
	return []testFunc{
		{export: "allocate", typ: tAllocate, code: body(i32c(1024))},
		{export: "deallocate", typ: tDeallocate, code: body()},
		{export: "modbridge_on_load", typ: tOnLoad, code: onLoad},
		{export: "modbridge_on_unload", typ: tOnUnload, code: body(i32c(0))},
		{export: "modbridge_command", typ: tCommand, code: command},
		{export: "modbridge_event", typ: tEvent, code: body(i32c(0))},
	}
}

// greeterWasm handshakes as "greeter", registers greeter.ok (readonly) and
// answers every command with +OK.
func greeterWasm() []byte {
	const (
		fInit = iota
		fCreateCommand
		fReplyString
	)
	onLoad := body(
		local(0), i32c(16), i32c(7), i32c(3), i32c(1), call(fInit), []byte{opDrop},
		local(0), i64c(packed(32, 10)), i32c(0), i64c(packed(48, 8)), i32c(0), i32c(0), i32c(0), call(fCreateCommand),
	)
	command := body(local(0), i64c(packed(64, 2)), call(fReplyString))

	m := &testModule{
		types: protocolTypes,
		imports: []testImport{
			{field: "init", typ: tInit},
			{field: "create_command", typ: tCreateCommand},
			{field: "reply_simple_string", typ: tReplyString},
		},
		funcs: protocolFuncs(onLoad, command),
		data: map[uint32]string{
			16: "greeter",
			32: "greeter.ok",
			48: "readonly",
			64: "OK",
		},
	}
	return m.encode()
}

// statusWasm returns loadStatus from its load entry point without a
// handshake.
func statusWasm(loadStatus int32) []byte {
	m := &testModule{
		types: protocolTypes,
		funcs: protocolFuncs(body(i32c(loadStatus)), body(i32c(1))),
	}
	return m.encode()
}

// emptyWasm is a valid module that exports nothing.
func emptyWasm() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}
