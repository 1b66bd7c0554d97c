package packet

// Client opcodes.
const (
	C_OPCODE_JOIN        byte = 1  // [S name][S region]
	C_OPCODE_MOVE        byte = 2  // [F x][F y][F z]
	C_OPCODE_QUIT        byte = 3  // (empty)
	C_OPCODE_ADMIN_LOGIN byte = 10 // [S name][S password]
	C_OPCODE_COMMAND     byte = 11 // [S line]
)

// Server opcodes.
const (
	S_OPCODE_MESSAGE      byte = 100 // [C kind][S text]
	S_OPCODE_POSITION     byte = 101 // [Q entity][F x][F y][F z]
	S_OPCODE_STATUS       byte = 102 // [C count]{[S kind][C amplifier][D ticks]}
	S_OPCODE_LOGIN_RESULT byte = 103 // [C code][S detail]
	S_OPCODE_CONSOLE      byte = 104 // [S text]
	S_OPCODE_BLOCK        byte = 105 // [D x][D y][D z][S material]
)

// S_OPCODE_MESSAGE kinds.
const (
	MessageSystem   byte = 0
	MessageDisaster byte = 1
)

// S_OPCODE_LOGIN_RESULT codes.
const (
	LoginOK       byte = 0
	LoginRejected byte = 1
	LoginNameUsed byte = 2
	LoginNoRegion byte = 3
)
