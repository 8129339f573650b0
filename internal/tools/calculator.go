package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	maxExpressionLength = 256
	maxExpressionDepth  = 64
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrDivisionByZero  = errors.New("division by zero")
)

type CalculateArgs struct {
	Expression string `json:"expression" jsonschema:"arithmetic expression using numbers, + - * / % ** and parentheses, for example 123 + 456"`
}

// CalculateTool evaluates arithmetic expressions with a restricted parser.
// Nothing outside the arithmetic grammar is ever executed.
func CalculateTool() Tool {
	return MustNewTool("calculate", "计算数学表达式的结果",
		func(_ context.Context, args CalculateArgs) (string, error) {
			expr := strings.TrimSpace(args.Expression)
			v, err := Evaluate(expr)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("计算结果：%s = %s", expr, FormatNumber(v)), nil
		})
}

// Evaluate parses and evaluates expr.
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "**" unary ]
//	primary = number | "(" expr ")"
func Evaluate(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, ErrEmptyExpression
	}
	if len(expr) > maxExpressionLength {
		return 0, fmt.Errorf("expression too long: %d chars (max %d)", len(expr), maxExpressionLength)
	}
	toks, err := lex(expr)
	if err != nil {
		return 0, err
	}
	p := &calcParser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if t := p.peek(); t.kind != tokEnd {
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result out of range")
	}
	return v, nil
}

// FormatNumber renders v the way a calculator display would: integers
// without a fraction, everything else in shortest form.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type tokKind int

const (
	tokEnd tokKind = iota
	tokNum
	tokOp
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

// full-width and typographic operators users commonly paste in
var opAliases = map[rune]string{
	'＋': "+", '－': "-", '×': "*", '＊': "*", '÷': "/", '／': "/",
	'（': "(", '）': ")", '％': "%",
}

func lex(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r >= '0' && r <= '9' || r == '.':
			start := i
			for i < len(rs) && (rs[i] >= '0' && rs[i] <= '9' || rs[i] == '.' || rs[i] == '_') {
				i++
			}
			// exponent part, e.g. 1e3 or 2.5E-2
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
					for j < len(rs) && rs[j] >= '0' && rs[j] <= '9' {
						j++
					}
					i = j
				}
			}
			text := string(rs[start:i])
			n, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", text, start)
			}
			toks = append(toks, token{kind: tokNum, text: text, num: n, pos: start})
		case r == '*' && i+1 < len(rs) && rs[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "**", pos: i})
			i += 2
		case strings.ContainsRune("+-*/%()", r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		default:
			if op, ok := opAliases[r]; ok {
				toks = append(toks, token{kind: tokOp, text: op, pos: i})
				i++
				continue
			}
			return nil, fmt.Errorf("unsupported character %q at position %d", r, i)
		}
	}
	return append(toks, token{kind: tokEnd, text: "end of input", pos: len(rs)}), nil
}

type calcParser struct {
	toks  []token
	pos   int
	depth int
}

func (p *calcParser) peek() token { return p.toks[p.pos] }

func (p *calcParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEnd {
		p.pos++
	}
	return t
}

func (p *calcParser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *calcParser) enter() error {
	p.depth++
	if p.depth > maxExpressionDepth {
		return fmt.Errorf("expression nested too deeply (max %d)", maxExpressionDepth)
	}
	return nil
}

func (p *calcParser) leave() { p.depth-- }

func (p *calcParser) expr() (float64, error) {
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()

	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (p *calcParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next().text
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= rhs
		case "/":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			v /= rhs
		case "%":
			if rhs == 0 {
				return 0, ErrDivisionByZero
			}
			// result takes the sign of the divisor
			m := math.Mod(v, rhs)
			if m != 0 && (m < 0) != (rhs < 0) {
				m += rhs
			}
			v = m
		}
	}
	return v, nil
}

func (p *calcParser) unary() (float64, error) {
	if p.isOp("+", "-") {
		if err := p.enter(); err != nil {
			return 0, err
		}
		defer p.leave()
		op := p.next().text
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

func (p *calcParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.isOp("**") {
		return base, nil
	}
	p.next()
	if err := p.enter(); err != nil {
		return 0, err
	}
	defer p.leave()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	if base == 0 && exp < 0 {
		return 0, ErrDivisionByZero
	}
	return math.Pow(base, exp), nil
}

func (p *calcParser) primary() (float64, error) {
	t := p.next()
	switch {
	case t.kind == tokNum:
		return t.num, nil
	case t.kind == tokOp && t.text == "(":
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.isOp(")") {
			c := p.peek()
			return 0, fmt.Errorf("expected ')' at position %d, got %q", c.pos, c.text)
		}
		p.next()
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
}
