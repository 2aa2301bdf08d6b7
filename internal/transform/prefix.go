package transform

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// vendorPrefixes lists the properties that still need vendor-prefixed
// duplicates for the browsers the site supports.
var vendorPrefixes = map[string][]string{
	"user-select":      {"-webkit-"},
	"appearance":       {"-webkit-", "-moz-"},
	"backdrop-filter":  {"-webkit-"},
	"text-size-adjust": {"-webkit-"},
	"mask-image":       {"-webkit-"},
	"hyphens":          {"-webkit-"},
}

// Prefix inserts vendor-prefixed copies before each declaration of a property
// in the prefix table. Existing prefixed declarations are left alone, so
// running Prefix twice does not duplicate them. Comments are dropped.
func Prefix(src []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(src) + len(src)/8)

	p := css.NewParser(parse.NewInputBytes(src), false)
	var declared map[string]bool // prefixed properties already present in the current block
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != io.EOF {
				return nil, fmt.Errorf("parse css at offset %d: %w", p.Offset(), err)
			}
			return out.Bytes(), nil
		case css.CommentGrammar:
			continue
		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar:
			declared = map[string]bool{}
		case css.DeclarationGrammar:
			prop := strings.ToLower(string(data))
			if declared == nil {
				declared = map[string]bool{}
			}
			if strings.HasPrefix(prop, "-") {
				declared[prop] = true
			} else {
				for _, prefix := range vendorPrefixes[prop] {
					if declared[prefix+prop] {
						continue
					}
					out.WriteString(prefix)
					writeGrammar(&out, gt, data, p.Values())
				}
			}
		}
		writeGrammar(&out, gt, data, p.Values())
	}
}

func writeGrammar(out *bytes.Buffer, gt css.GrammarType, data []byte, values []css.Token) {
	switch gt {
	case css.DeclarationGrammar, css.CustomPropertyGrammar,
		css.AtRuleGrammar, css.BeginAtRuleGrammar,
		css.QualifiedRuleGrammar, css.BeginRulesetGrammar:
		out.Write(data)
		if gt == css.DeclarationGrammar || gt == css.CustomPropertyGrammar {
			out.WriteByte(':')
		}
		for _, v := range values {
			out.Write(v.Data)
		}
		switch gt {
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			out.WriteByte('{')
		case css.QualifiedRuleGrammar:
			out.WriteByte(',')
		default:
			out.WriteByte(';')
		}
	default:
		out.Write(data)
	}
}
