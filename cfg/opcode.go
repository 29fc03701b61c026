//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import "fmt"

// Opcode is a JVM opcode. Values match the class file encoding. The wide and short forms of
// instructions (ldc_w, iload_0, goto_w, ...) are expected to be normalized by the decoder.
type Opcode uint8

// JVM opcodes.
const (
	NOP             Opcode = 0
	ACONST_NULL     Opcode = 1
	ICONST_M1       Opcode = 2
	ICONST_0        Opcode = 3
	ICONST_1        Opcode = 4
	ICONST_2        Opcode = 5
	ICONST_3        Opcode = 6
	ICONST_4        Opcode = 7
	ICONST_5        Opcode = 8
	LCONST_0        Opcode = 9
	LCONST_1        Opcode = 10
	FCONST_0        Opcode = 11
	FCONST_1        Opcode = 12
	FCONST_2        Opcode = 13
	DCONST_0        Opcode = 14
	DCONST_1        Opcode = 15
	BIPUSH          Opcode = 16
	SIPUSH          Opcode = 17
	LDC             Opcode = 18
	ILOAD           Opcode = 21
	LLOAD           Opcode = 22
	FLOAD           Opcode = 23
	DLOAD           Opcode = 24
	ALOAD           Opcode = 25
	IALOAD          Opcode = 46
	LALOAD          Opcode = 47
	FALOAD          Opcode = 48
	DALOAD          Opcode = 49
	AALOAD          Opcode = 50
	BALOAD          Opcode = 51
	CALOAD          Opcode = 52
	SALOAD          Opcode = 53
	ISTORE          Opcode = 54
	LSTORE          Opcode = 55
	FSTORE          Opcode = 56
	DSTORE          Opcode = 57
	ASTORE          Opcode = 58
	IASTORE         Opcode = 79
	LASTORE         Opcode = 80
	FASTORE         Opcode = 81
	DASTORE         Opcode = 82
	AASTORE         Opcode = 83
	BASTORE         Opcode = 84
	CASTORE         Opcode = 85
	SASTORE         Opcode = 86
	POP             Opcode = 87
	POP2            Opcode = 88
	DUP             Opcode = 89
	DUP_X1          Opcode = 90
	DUP_X2          Opcode = 91
	DUP2            Opcode = 92
	DUP2_X1         Opcode = 93
	DUP2_X2         Opcode = 94
	SWAP            Opcode = 95
	IADD            Opcode = 96
	LADD            Opcode = 97
	FADD            Opcode = 98
	DADD            Opcode = 99
	ISUB            Opcode = 100
	LSUB            Opcode = 101
	FSUB            Opcode = 102
	DSUB            Opcode = 103
	IMUL            Opcode = 104
	LMUL            Opcode = 105
	FMUL            Opcode = 106
	DMUL            Opcode = 107
	IDIV            Opcode = 108
	LDIV            Opcode = 109
	FDIV            Opcode = 110
	DDIV            Opcode = 111
	IREM            Opcode = 112
	LREM            Opcode = 113
	FREM            Opcode = 114
	DREM            Opcode = 115
	INEG            Opcode = 116
	LNEG            Opcode = 117
	FNEG            Opcode = 118
	DNEG            Opcode = 119
	ISHL            Opcode = 120
	LSHL            Opcode = 121
	ISHR            Opcode = 122
	LSHR            Opcode = 123
	IUSHR           Opcode = 124
	LUSHR           Opcode = 125
	IAND            Opcode = 126
	LAND            Opcode = 127
	IOR             Opcode = 128
	LOR             Opcode = 129
	IXOR            Opcode = 130
	LXOR            Opcode = 131
	IINC            Opcode = 132
	I2L             Opcode = 133
	I2F             Opcode = 134
	I2D             Opcode = 135
	L2I             Opcode = 136
	L2F             Opcode = 137
	L2D             Opcode = 138
	F2I             Opcode = 139
	F2L             Opcode = 140
	F2D             Opcode = 141
	D2I             Opcode = 142
	D2L             Opcode = 143
	D2F             Opcode = 144
	I2B             Opcode = 145
	I2C             Opcode = 146
	I2S             Opcode = 147
	LCMP            Opcode = 148
	FCMPL           Opcode = 149
	FCMPG           Opcode = 150
	DCMPL           Opcode = 151
	DCMPG           Opcode = 152
	IFEQ            Opcode = 153
	IFNE            Opcode = 154
	IFLT            Opcode = 155
	IFGE            Opcode = 156
	IFGT            Opcode = 157
	IFLE            Opcode = 158
	IF_ICMPEQ       Opcode = 159
	IF_ICMPNE       Opcode = 160
	IF_ICMPLT       Opcode = 161
	IF_ICMPGE       Opcode = 162
	IF_ICMPGT       Opcode = 163
	IF_ICMPLE       Opcode = 164
	IF_ACMPEQ       Opcode = 165
	IF_ACMPNE       Opcode = 166
	GOTO            Opcode = 167
	JSR             Opcode = 168
	RET             Opcode = 169
	TABLESWITCH     Opcode = 170
	LOOKUPSWITCH    Opcode = 171
	IRETURN         Opcode = 172
	LRETURN         Opcode = 173
	FRETURN         Opcode = 174
	DRETURN         Opcode = 175
	ARETURN         Opcode = 176
	RETURN          Opcode = 177
	GETSTATIC       Opcode = 178
	PUTSTATIC       Opcode = 179
	GETFIELD        Opcode = 180
	PUTFIELD        Opcode = 181
	INVOKEVIRTUAL   Opcode = 182
	INVOKESPECIAL   Opcode = 183
	INVOKESTATIC    Opcode = 184
	INVOKEINTERFACE Opcode = 185
	INVOKEDYNAMIC   Opcode = 186
	NEW             Opcode = 187
	NEWARRAY        Opcode = 188
	ANEWARRAY       Opcode = 189
	ARRAYLENGTH     Opcode = 190
	ATHROW          Opcode = 191
	CHECKCAST       Opcode = 192
	INSTANCEOF      Opcode = 193
	MONITORENTER    Opcode = 194
	MONITOREXIT     Opcode = 195
	MULTIANEWARRAY  Opcode = 197
	IFNULL          Opcode = 198
	IFNONNULL       Opcode = 199
)

var opcodeNames = [...]string{
	NOP:             "nop",
	ACONST_NULL:     "aconst_null",
	ICONST_M1:       "iconst_m1",
	ICONST_0:        "iconst_0",
	ICONST_1:        "iconst_1",
	ICONST_2:        "iconst_2",
	ICONST_3:        "iconst_3",
	ICONST_4:        "iconst_4",
	ICONST_5:        "iconst_5",
	LCONST_0:        "lconst_0",
	LCONST_1:        "lconst_1",
	FCONST_0:        "fconst_0",
	FCONST_1:        "fconst_1",
	FCONST_2:        "fconst_2",
	DCONST_0:        "dconst_0",
	DCONST_1:        "dconst_1",
	BIPUSH:          "bipush",
	SIPUSH:          "sipush",
	LDC:             "ldc",
	ILOAD:           "iload",
	LLOAD:           "lload",
	FLOAD:           "fload",
	DLOAD:           "dload",
	ALOAD:           "aload",
	IALOAD:          "iaload",
	LALOAD:          "laload",
	FALOAD:          "faload",
	DALOAD:          "daload",
	AALOAD:          "aaload",
	BALOAD:          "baload",
	CALOAD:          "caload",
	SALOAD:          "saload",
	ISTORE:          "istore",
	LSTORE:          "lstore",
	FSTORE:          "fstore",
	DSTORE:          "dstore",
	ASTORE:          "astore",
	IASTORE:         "iastore",
	LASTORE:         "lastore",
	FASTORE:         "fastore",
	DASTORE:         "dastore",
	AASTORE:         "aastore",
	BASTORE:         "bastore",
	CASTORE:         "castore",
	SASTORE:         "sastore",
	POP:             "pop",
	POP2:            "pop2",
	DUP:             "dup",
	DUP_X1:          "dup_x1",
	DUP_X2:          "dup_x2",
	DUP2:            "dup2",
	DUP2_X1:         "dup2_x1",
	DUP2_X2:         "dup2_x2",
	SWAP:            "swap",
	IADD:            "iadd",
	LADD:            "ladd",
	FADD:            "fadd",
	DADD:            "dadd",
	ISUB:            "isub",
	LSUB:            "lsub",
	FSUB:            "fsub",
	DSUB:            "dsub",
	IMUL:            "imul",
	LMUL:            "lmul",
	FMUL:            "fmul",
	DMUL:            "dmul",
	IDIV:            "idiv",
	LDIV:            "ldiv",
	FDIV:            "fdiv",
	DDIV:            "ddiv",
	IREM:            "irem",
	LREM:            "lrem",
	FREM:            "frem",
	DREM:            "drem",
	INEG:            "ineg",
	LNEG:            "lneg",
	FNEG:            "fneg",
	DNEG:            "dneg",
	ISHL:            "ishl",
	LSHL:            "lshl",
	ISHR:            "ishr",
	LSHR:            "lshr",
	IUSHR:           "iushr",
	LUSHR:           "lushr",
	IAND:            "iand",
	LAND:            "land",
	IOR:             "ior",
	LOR:             "lor",
	IXOR:            "ixor",
	LXOR:            "lxor",
	IINC:            "iinc",
	I2L:             "i2l",
	I2F:             "i2f",
	I2D:             "i2d",
	L2I:             "l2i",
	L2F:             "l2f",
	L2D:             "l2d",
	F2I:             "f2i",
	F2L:             "f2l",
	F2D:             "f2d",
	D2I:             "d2i",
	D2L:             "d2l",
	D2F:             "d2f",
	I2B:             "i2b",
	I2C:             "i2c",
	I2S:             "i2s",
	LCMP:            "lcmp",
	FCMPL:           "fcmpl",
	FCMPG:           "fcmpg",
	DCMPL:           "dcmpl",
	DCMPG:           "dcmpg",
	IFEQ:            "ifeq",
	IFNE:            "ifne",
	IFLT:            "iflt",
	IFGE:            "ifge",
	IFGT:            "ifgt",
	IFLE:            "ifle",
	IF_ICMPEQ:       "if_icmpeq",
	IF_ICMPNE:       "if_icmpne",
	IF_ICMPLT:       "if_icmplt",
	IF_ICMPGE:       "if_icmpge",
	IF_ICMPGT:       "if_icmpgt",
	IF_ICMPLE:       "if_icmple",
	IF_ACMPEQ:       "if_acmpeq",
	IF_ACMPNE:       "if_acmpne",
	GOTO:            "goto",
	JSR:             "jsr",
	RET:             "ret",
	TABLESWITCH:     "tableswitch",
	LOOKUPSWITCH:    "lookupswitch",
	IRETURN:         "ireturn",
	LRETURN:         "lreturn",
	FRETURN:         "freturn",
	DRETURN:         "dreturn",
	ARETURN:         "areturn",
	RETURN:          "return",
	GETSTATIC:       "getstatic",
	PUTSTATIC:       "putstatic",
	GETFIELD:        "getfield",
	PUTFIELD:        "putfield",
	INVOKEVIRTUAL:   "invokevirtual",
	INVOKESPECIAL:   "invokespecial",
	INVOKESTATIC:    "invokestatic",
	INVOKEINTERFACE: "invokeinterface",
	INVOKEDYNAMIC:   "invokedynamic",
	NEW:             "new",
	NEWARRAY:        "newarray",
	ANEWARRAY:       "anewarray",
	ARRAYLENGTH:     "arraylength",
	ATHROW:          "athrow",
	CHECKCAST:       "checkcast",
	INSTANCEOF:      "instanceof",
	MONITORENTER:    "monitorenter",
	MONITOREXIT:     "monitorexit",
	MULTIANEWARRAY:  "multianewarray",
	IFNULL:          "ifnull",
	IFNONNULL:       "ifnonnull",
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		if name != "" {
			opcodesByName[name] = Opcode(op)
		}
	}
}

// OpcodeByName returns the opcode with the given lower case mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}
