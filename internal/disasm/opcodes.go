package disasm

import "strconv"

// Category groups opcodes by the part of the machine they touch.
type Category uint8

const (
	Unknown Category = iota
	Stack
	Arithmetic
	Comparison
	Bitwise
	Crypto
	EnvInfo
	BlockInfo
	Memory
	Storage
	Flow
	System
	Push
	Dup
	Swap
	Log
)

var categoryNames = [...]string{
	Unknown:    "Unknown",
	Stack:      "Stack",
	Arithmetic: "Arithmetic",
	Comparison: "Comparison",
	Bitwise:    "Bitwise",
	Crypto:     "Crypto",
	EnvInfo:    "EnvInfo",
	BlockInfo:  "BlockInfo",
	Memory:     "Memory",
	Storage:    "Storage",
	Flow:       "Flow",
	System:     "System",
	Push:       "Push",
	Dup:        "Dup",
	Swap:       "Swap",
	Log:        "Log",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "Unknown"
}

// MarshalText lets categories appear by name in JSON output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Opcode bytes the decoder and the analysis passes refer to directly.
const (
	STOP         byte = 0x00
	ADD          byte = 0x01
	EQ           byte = 0x14
	ISZERO       byte = 0x15
	KECCAK256    byte = 0x20
	CALLDATALOAD byte = 0x35
	POP          byte = 0x50
	MLOAD        byte = 0x51
	MSTORE       byte = 0x52
	MSTORE8      byte = 0x53
	SLOAD        byte = 0x54
	SSTORE       byte = 0x55
	JUMP         byte = 0x56
	JUMPI        byte = 0x57
	JUMPDEST     byte = 0x5b
	TLOAD        byte = 0x5c
	TSTORE       byte = 0x5d
	PUSH0        byte = 0x5f
	PUSH1        byte = 0x60
	PUSH4        byte = 0x63
	PUSH20       byte = 0x73
	PUSH32       byte = 0x7f
	DUP1         byte = 0x80
	DUP16        byte = 0x8f
	SWAP1        byte = 0x90
	SWAP16       byte = 0x9f
	CALL         byte = 0xf1
	CALLCODE     byte = 0xf2
	RETURN       byte = 0xf3
	DELEGATECALL byte = 0xf4
	STATICCALL   byte = 0xfa
	REVERT       byte = 0xfd
	INVALID      byte = 0xfe
	SELFDESTRUCT byte = 0xff
)

// InvalidMnemonic names both the designated INVALID opcode and every undefined byte.
const InvalidMnemonic = "INVALID"

// OpInfo describes one entry of the opcode table.
type OpInfo struct {
	Mnemonic  string
	Category  Category
	Immediate int // operand bytes following the opcode
	Pops      int
	Pushes    int
	Defined   bool
}

var table [256]OpInfo

func init() {
	defs := []struct {
		op        byte
		name      string
		cat       Category
		pop, push int
	}{
		{0x00, "STOP", Flow, 0, 0},
		{0x01, "ADD", Arithmetic, 2, 1},
		{0x02, "MUL", Arithmetic, 2, 1},
		{0x03, "SUB", Arithmetic, 2, 1},
		{0x04, "DIV", Arithmetic, 2, 1},
		{0x05, "SDIV", Arithmetic, 2, 1},
		{0x06, "MOD", Arithmetic, 2, 1},
		{0x07, "SMOD", Arithmetic, 2, 1},
		{0x08, "ADDMOD", Arithmetic, 3, 1},
		{0x09, "MULMOD", Arithmetic, 3, 1},
		{0x0a, "EXP", Arithmetic, 2, 1},
		{0x0b, "SIGNEXTEND", Arithmetic, 2, 1},

		{0x10, "LT", Comparison, 2, 1},
		{0x11, "GT", Comparison, 2, 1},
		{0x12, "SLT", Comparison, 2, 1},
		{0x13, "SGT", Comparison, 2, 1},
		{0x14, "EQ", Comparison, 2, 1},
		{0x15, "ISZERO", Comparison, 1, 1},
		{0x16, "AND", Bitwise, 2, 1},
		{0x17, "OR", Bitwise, 2, 1},
		{0x18, "XOR", Bitwise, 2, 1},
		{0x19, "NOT", Bitwise, 1, 1},
		{0x1a, "BYTE", Bitwise, 2, 1},
		{0x1b, "SHL", Bitwise, 2, 1},
		{0x1c, "SHR", Bitwise, 2, 1},
		{0x1d, "SAR", Bitwise, 2, 1},

		{0x20, "KECCAK256", Crypto, 2, 1},

		{0x30, "ADDRESS", EnvInfo, 0, 1},
		{0x31, "BALANCE", EnvInfo, 1, 1},
		{0x32, "ORIGIN", EnvInfo, 0, 1},
		{0x33, "CALLER", EnvInfo, 0, 1},
		{0x34, "CALLVALUE", EnvInfo, 0, 1},
		{0x35, "CALLDATALOAD", EnvInfo, 1, 1},
		{0x36, "CALLDATASIZE", EnvInfo, 0, 1},
		{0x37, "CALLDATACOPY", EnvInfo, 3, 0},
		{0x38, "CODESIZE", EnvInfo, 0, 1},
		{0x39, "CODECOPY", EnvInfo, 3, 0},
		{0x3a, "GASPRICE", EnvInfo, 0, 1},
		{0x3b, "EXTCODESIZE", EnvInfo, 1, 1},
		{0x3c, "EXTCODECOPY", EnvInfo, 4, 0},
		{0x3d, "RETURNDATASIZE", EnvInfo, 0, 1},
		{0x3e, "RETURNDATACOPY", EnvInfo, 3, 0},
		{0x3f, "EXTCODEHASH", EnvInfo, 1, 1},

		{0x40, "BLOCKHASH", BlockInfo, 1, 1},
		{0x41, "COINBASE", BlockInfo, 0, 1},
		{0x42, "TIMESTAMP", BlockInfo, 0, 1},
		{0x43, "NUMBER", BlockInfo, 0, 1},
		{0x44, "PREVRANDAO", BlockInfo, 0, 1},
		{0x45, "GASLIMIT", BlockInfo, 0, 1},
		{0x46, "CHAINID", BlockInfo, 0, 1},
		{0x47, "SELFBALANCE", BlockInfo, 0, 1},
		{0x48, "BASEFEE", BlockInfo, 0, 1},
		{0x49, "BLOBHASH", BlockInfo, 1, 1},
		{0x4a, "BLOBBASEFEE", BlockInfo, 0, 1},

		{0x50, "POP", Stack, 1, 0},
		{0x51, "MLOAD", Memory, 1, 1},
		{0x52, "MSTORE", Memory, 2, 0},
		{0x53, "MSTORE8", Memory, 2, 0},
		{0x54, "SLOAD", Storage, 1, 1},
		{0x55, "SSTORE", Storage, 2, 0},
		{0x56, "JUMP", Flow, 1, 0},
		{0x57, "JUMPI", Flow, 2, 0},
		{0x58, "PC", Flow, 0, 1},
		{0x59, "MSIZE", Memory, 0, 1},
		{0x5a, "GAS", EnvInfo, 0, 1},
		{0x5b, "JUMPDEST", Flow, 0, 0},
		{0x5c, "TLOAD", Storage, 1, 1},
		{0x5d, "TSTORE", Storage, 2, 0},
		{0x5e, "MCOPY", Memory, 3, 0},
		{0x5f, "PUSH0", Push, 0, 1},

		{0xf0, "CREATE", System, 3, 1},
		{0xf1, "CALL", System, 7, 1},
		{0xf2, "CALLCODE", System, 7, 1},
		{0xf3, "RETURN", System, 2, 0},
		{0xf4, "DELEGATECALL", System, 6, 1},
		{0xf5, "CREATE2", System, 4, 1},
		{0xfa, "STATICCALL", System, 6, 1},
		{0xfd, "REVERT", System, 2, 0},
		{0xfe, InvalidMnemonic, System, 0, 0},
		{0xff, "SELFDESTRUCT", System, 1, 0},
	}

	for i := range table {
		table[i] = OpInfo{Mnemonic: InvalidMnemonic, Category: Unknown}
	}
	for _, d := range defs {
		table[d.op] = OpInfo{Mnemonic: d.name, Category: d.cat, Pops: d.pop, Pushes: d.push, Defined: true}
	}
	for n := 1; n <= 32; n++ {
		table[int(PUSH1)+n-1] = OpInfo{Mnemonic: "PUSH" + strconv.Itoa(n), Category: Push, Immediate: n, Pushes: 1, Defined: true}
	}
	for n := 1; n <= 16; n++ {
		table[int(DUP1)+n-1] = OpInfo{Mnemonic: "DUP" + strconv.Itoa(n), Category: Dup, Pops: n, Pushes: n + 1, Defined: true}
		table[int(SWAP1)+n-1] = OpInfo{Mnemonic: "SWAP" + strconv.Itoa(n), Category: Swap, Pops: n + 1, Pushes: n + 1, Defined: true}
	}
	for n := 0; n <= 4; n++ {
		table[0xa0+n] = OpInfo{Mnemonic: "LOG" + strconv.Itoa(n), Category: Log, Pops: n + 2, Defined: true}
	}
}

// Lookup returns the table entry for op.
func Lookup(op byte) OpInfo {
	return table[op]
}

// IsPush reports whether op carries an immediate operand (PUSH1..PUSH32).
func IsPush(op byte) bool {
	return op >= PUSH1 && op <= PUSH32
}

// Mnemonics lists every defined mnemonic in opcode order. The designated
// INVALID opcode appears once.
func Mnemonics() []string {
	out := make([]string, 0, 150)
	for i := range table {
		if table[i].Defined {
			out = append(out, table[i].Mnemonic)
		}
	}
	return out
}
