package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// EVMDark is the listing style: white mnemonics, pink immediates, teal
// placeholder tokens.
var EVMDark = styles.Register(chroma.MustNewStyle("evm-dark", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // Default text white
	chroma.Background:     "bg:#1e1e1e", // Dark background
	chroma.Comment:        "#6A9955",    // Annotations in green
	chroma.CommentPreproc: "#6A9955",

	// For NASM lexer mappings
	chroma.Keyword:       "#FFFFFF", // Mnemonics in white
	chroma.KeywordPseudo: "#FFFFFF",
	chroma.Name:          "#7C9C9D", // CONST_* tokens in teal
	chroma.NameBuiltin:   "#7C9C9D",
	chroma.NameVariable:  "#7C9C9D",

	// Numbers
	chroma.LiteralNumber:        "#FF5F87", // PUSH immediates in pink
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	// Labels and symbols
	chroma.NameLabel:    "#FFD700", // JUMPDEST labels in gold
	chroma.NameFunction: "#FFFFFF", // Mnemonics are tokenized as functions, use white

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",
	chroma.String:      "#EACD53",
}))
