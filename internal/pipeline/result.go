package pipeline

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"evmnorm/internal/analysis"
	"evmnorm/internal/disasm"
	"evmnorm/internal/metadata"
	"evmnorm/internal/normalize"
	"evmnorm/internal/vector"
)

// Result is the output of one normalization call.
type Result struct {
	NormalizedBytecode string               `json:"normalized_bytecode"`
	Instructions       []Instruction        `json:"instructions"`
	Features           *analysis.FeatureSet `json:"features"`
	Truncated          bool                 `json:"truncated"`
	Metadata           *metadata.Span       `json:"metadata,omitempty"`
	MetadataStripped   int                  `json:"metadata_stripped"`
	DroppedJumpDests   int                  `json:"dropped_jumpdests"`
	SchemaVersion      int                  `json:"schema_version"`
}

// Instruction is the JSON view of a normalized instruction. Operand is the
// raw immediate and is omitted once a token replaces it.
type Instruction struct {
	Offset    uint32          `json:"offset"`
	Opcode    string          `json:"opcode"`
	Mnemonic  string          `json:"mnemonic"`
	Operand   string          `json:"operand,omitempty"`
	Token     string          `json:"token,omitempty"`
	Category  disasm.Category `json:"category"`
	Truncated bool            `json:"truncated,omitempty"`
}

// Comparison is the output of one similarity call.
type Comparison struct {
	FinalScore      float64            `json:"final_score"`
	Confidence      float64            `json:"confidence"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	GroupScores     map[string]float64 `json:"group_scores"`
	SequenceScore   float64            `json:"sequence_score"`
	SchemaVersion   int                `json:"schema_version"`
}

// NewResult builds the JSON view of a.
func NewResult(a *Analysis) *Result {
	prog := a.Program
	r := &Result{
		NormalizedBytecode: prog.Hex(),
		Instructions:       make([]Instruction, 0, len(prog.Instructions)),
		Features:           a.Features,
		Truncated:          prog.Truncated,
		Metadata:           prog.Metadata,
		MetadataStripped:   prog.MetadataStripped,
		DroppedJumpDests:   prog.DroppedJumpDests,
		SchemaVersion:      vector.SchemaVersion,
	}
	for _, inst := range prog.Instructions {
		r.Instructions = append(r.Instructions, viewInstruction(inst))
	}
	return r
}

func viewInstruction(inst normalize.Instruction) Instruction {
	v := Instruction{
		Offset:    inst.Offset,
		Opcode:    fmt.Sprintf("0x%02x", inst.Op),
		Mnemonic:  inst.Mnemonic,
		Category:  inst.Category,
		Truncated: inst.Truncated,
	}
	switch {
	case inst.Token != normalize.TokenNone:
		v.Token = inst.Token.String()
	case len(inst.Operand) > 0:
		v.Operand = hexutil.Encode(inst.Operand)
	}
	return v
}
