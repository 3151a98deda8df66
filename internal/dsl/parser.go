package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/ledger"
)

// Parser is a recursive-descent parser over the lexer's token stream.
//
// Statement grammar (sections must appear in this order):
//
//	template := { let } { require } entry [ after ] EOF
//	let      := "let" IDENT "=" expr
//	require  := "require" expr ":" STRING
//	entry    := "entry" "{" line { line } "}"
//	line     := ("debit" | "credit") expr "amount" "(" expr ")" [ "{" { attr } "}" ]
//	after    := "after" "{" { IDENT "(" [ args ] ")" } "}"
//
// Errors are collected; after a failed statement the parser resynchronises on
// the next statement keyword so one mistake does not hide the rest.
type Parser struct {
	source  string
	tokens  []Token
	pos     int
	errs    CompileErrors
	section int
	entries int
	ct      *CompiledTemplate
}

const (
	sectionLet = iota
	sectionRequire
	sectionEntry
	sectionAfter
)

var sectionNames = [...]string{"let declarations", "require rules", "the entry block", "the after block"}

// errReported marks an error already recorded by the lexer (ILLEGAL tokens).
var errReported = errors.New("already reported")

func newParser(source string, tokens []Token) *Parser {
	return &Parser{source: source, tokens: tokens, ct: &CompiledTemplate{}}
}

// parseTemplate parses every statement and returns the (possibly partial) template.
func (p *Parser) parseTemplate() *CompiledTemplate {
	for !p.check(EOF) {
		tok := p.peek()
		var err error
		switch tok.Type {
		case LET:
			err = p.parseLet()
		case REQUIRE:
			err = p.parseRequire()
		case ENTRY:
			err = p.parseEntry()
		case AFTER:
			err = p.parseAfter()
		case SEMICOLON:
			p.advance()
			continue
		default:
			err = p.errorAt(tok, "expected 'let', 'require', 'entry' or 'after', got %s", p.describe(tok))
		}
		if err != nil {
			p.report(err)
			p.synchronize()
		}
	}
	if p.entries == 0 {
		p.report(p.errorAt(p.peek(), "missing entry block"))
	}
	return p.ct
}

// enter enforces section order and reports statements that appear too late.
func (p *Parser) enter(tok Token, section int) {
	if section < p.section {
		p.report(p.errorAt(tok, "%s must come before %s", sectionNames[section], sectionNames[p.section]))
		return
	}
	p.section = section
}

func (p *Parser) parseLet() error {
	letTok := p.advance()
	p.enter(letTok, sectionLet)
	name, err := p.expect(IDENT, "variable name after 'let'")
	if err != nil {
		return err
	}
	if _, err := p.expect(ASSIGN, "'=' after variable name"); err != nil {
		return err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	p.ct.Lets = append(p.ct.Lets, Let{Name: name.Text(p.source), Expr: expr, Pos: letTok.Pos()})
	return nil
}

func (p *Parser) parseRequire() error {
	reqTok := p.advance()
	p.enter(reqTok, sectionRequire)
	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(COLON, "':' before the rule message"); err != nil {
		return err
	}
	msgTok := p.peek()
	if msgTok.Type != STRING {
		// Consume whatever expression was written so parsing can continue.
		if _, err := p.parseExpr(); err != nil {
			return err
		}
		p.report(p.errorAt(msgTok, "require message must be a string literal"))
		return nil
	}
	p.advance()
	msg, err := p.unquote(msgTok)
	if err != nil {
		return err
	}
	p.ct.Rules = append(p.ct.Rules, Rule{Index: len(p.ct.Rules), Expr: expr, Message: msg, Pos: reqTok.Pos()})
	return nil
}

func (p *Parser) parseEntry() error {
	entryTok := p.advance()
	p.enter(entryTok, sectionEntry)
	p.entries++
	if p.entries > 1 {
		p.report(p.errorAt(entryTok, "only one entry block is allowed"))
	}
	open, err := p.expect(LBRACE, "'{' after 'entry'")
	if err != nil {
		return err
	}
	lines := 0
	for {
		tok := p.peek()
		switch tok.Type {
		case RBRACE:
			p.advance()
			if lines == 0 {
				p.report(p.errorAt(entryTok, "entry block has no debit or credit lines"))
			}
			return nil
		case EOF, LET, REQUIRE, ENTRY, AFTER:
			return p.errorAt(tok, "unmatched '{' at %s: entry block is not closed", open.Pos())
		case DEBIT, CREDIT:
			lines++
			if err := p.parseLine(); err != nil {
				p.report(err)
				p.syncLine()
			}
		case SEMICOLON, COMMA:
			p.advance()
		default:
			p.report(p.errorAt(tok, "expected 'debit' or 'credit', got %s", p.describe(tok)))
			p.syncLine()
		}
	}
}

func (p *Parser) parseLine() error {
	sideTok := p.advance()
	ls := LineSpec{Index: len(p.ct.Lines), Side: ledger.SideDebit, Pos: sideTok.Pos()}
	if sideTok.Type == CREDIT {
		ls.Side = ledger.SideCredit
	}
	side := string(ls.Side)

	if !p.atAmount() && !p.atLineEnd() {
		acc, err := p.parseExpr()
		if err != nil {
			return err
		}
		ls.Account = acc
	}
	if p.atAmount() {
		p.advance()
		if _, err := p.expect(LPAREN, "'(' after 'amount'"); err != nil {
			return err
		}
		amt, err := p.parseExpr()
		if err != nil {
			return err
		}
		if _, err := p.expect(RPAREN, "')' to close amount(...)"); err != nil {
			return err
		}
		ls.Amount = amt
	}
	switch {
	case ls.Account == nil && ls.Amount == nil:
		p.report(p.errorAt(sideTok, "%s line is missing both an account and amount(...)", side))
	case ls.Account == nil:
		p.report(p.errorAt(sideTok, "%s line is missing an account", side))
	case ls.Amount == nil:
		p.report(p.errorAt(sideTok, "%s line is missing amount(...)", side))
	}

	if p.check(LBRACE) {
		p.parseAttrs(&ls)
	}
	p.ct.Lines = append(p.ct.Lines, ls)
	return nil
}

// parseAttrs parses a `{ name = expr ... }` attribute block. Errors inside the block are
// reported and the parser skips to the block's closing brace.
func (p *Parser) parseAttrs(ls *LineSpec) {
	open := p.advance()
	for {
		tok := p.peek()
		switch tok.Type {
		case RBRACE:
			p.advance()
			return
		case EOF, DEBIT, CREDIT, LET, REQUIRE, ENTRY, AFTER:
			p.report(p.errorAt(tok, "unmatched '{' at %s: attribute block is not closed", open.Pos()))
			return
		case SEMICOLON, COMMA:
			p.advance()
			continue
		}
		if err := p.parseAttr(ls); err != nil {
			p.report(err)
			p.skipToClose()
			return
		}
	}
}

func (p *Parser) parseAttr(ls *LineSpec) error {
	nameTok, err := p.expect(IDENT, "attribute name (description, cost_center or metadata.<key>)")
	if err != nil {
		return err
	}
	name := nameTok.Text(p.source)
	var key []string
	switch name {
	case "description", "cost_center":
	case "metadata":
		for p.check(DOT) {
			p.advance()
			seg, err := p.expect(IDENT, "metadata key segment")
			if err != nil {
				return err
			}
			key = append(key, seg.Text(p.source))
		}
		if len(key) == 0 {
			return p.errorAt(nameTok, "metadata attribute needs a key, e.g. metadata.invoice = ...")
		}
	default:
		return p.errorAt(nameTok, "unknown line attribute %q", name)
	}
	if _, err := p.expect(ASSIGN, "'=' after attribute name"); err != nil {
		return err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	switch name {
	case "description":
		if ls.Description != nil {
			p.report(p.errorAt(nameTok, "duplicate description attribute"))
		}
		ls.Description = expr
	case "cost_center":
		if ls.CostCenter != nil {
			p.report(p.errorAt(nameTok, "duplicate cost_center attribute"))
		}
		ls.CostCenter = expr
	default:
		k := strings.Join(key, ".")
		for _, m := range ls.Metadata {
			if m.Key == k {
				p.report(p.errorAt(nameTok, "duplicate metadata key %q", k))
			}
		}
		ls.Metadata = append(ls.Metadata, MetaAttr{Key: k, Expr: expr, Pos: nameTok.Pos()})
	}
	return nil
}

func (p *Parser) parseAfter() error {
	afterTok := p.advance()
	p.enter(afterTok, sectionAfter)
	open, err := p.expect(LBRACE, "'{' after 'after'")
	if err != nil {
		return err
	}
	for {
		tok := p.peek()
		switch tok.Type {
		case RBRACE:
			p.advance()
			return nil
		case EOF, LET, REQUIRE, ENTRY, AFTER:
			return p.errorAt(tok, "unmatched '{' at %s: after block is not closed", open.Pos())
		case SEMICOLON, COMMA:
			p.advance()
			continue
		}
		name, err := p.expect(IDENT, "action call")
		if err != nil {
			return err
		}
		if _, err := p.expect(LPAREN, "'(' after action name"); err != nil {
			return err
		}
		args, err := p.parseArgs()
		if err != nil {
			return err
		}
		p.ct.After = append(p.ct.After, Action{Name: name.Text(p.source), Args: args, Pos: name.Pos()})
	}
}

// Expression grammar, lowest to highest precedence:
//
//	or       := and { ("or" | "||") and }
//	and      := not { ("and" | "&&") not }
//	not      := ("not" | "!") not | compare
//	compare  := additive [ ("==" | "!=" | "<" | "<=" | ">" | ">=") additive ]
//	additive := term { ("+" | "-") term }
//	term     := unary { ("*" | "/") unary }
//	unary    := "-" unary | postfix
//	postfix  := primary { "." IDENT | "[" expr "]" }

func (p *Parser) parseExpr() (*Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(OR) || p.check(OROR) {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Pos: op.Pos(), Op: OpOr, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (*Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.check(AND) || p.check(ANDAND) {
		op := p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Pos: op.Pos(), Op: OpAnd, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (*Expr, error) {
	if p.check(NOT) || p.check(BANG) {
		op := p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, Pos: op.Pos(), Op: OpNot, X: x}, nil
	}
	return p.parseCompare()
}

var compareOps = map[TokenType]Op{EQ: OpEq, NEQ: OpNeq, LT: OpLt, LTE: OpLte, GT: OpGt, GTE: OpGte}

func (p *Parser) parseCompare() (*Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := compareOps[p.peek().Type]; ok {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Pos: tok.Pos(), Op: op, X: left, Y: right}
		if _, chained := compareOps[p.peek().Type]; chained {
			return nil, p.errorAt(p.peek(), "comparisons cannot be chained; use 'and'")
		}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (*Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.check(PLUS) || p.check(MINUS) {
		tok := p.advance()
		op := OpAdd
		if tok.Type == MINUS {
			op = OpSub
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Pos: tok.Pos(), Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(STAR) || p.check(SLASH) {
		tok := p.advance()
		op := OpMul
		if tok.Type == SLASH {
			op = OpDiv
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Pos: tok.Pos(), Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (*Expr, error) {
	if p.check(MINUS) {
		tok := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, Pos: tok.Pos(), Op: OpNeg, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (*Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(DOT):
			p.advance()
			name, err := p.expect(IDENT, "field name after '.'")
			if err != nil {
				return nil, err
			}
			x = &Expr{Kind: ExprField, Pos: x.Pos, Name: name.Text(p.source), X: x}
		case p.check(LBRACKET):
			open := p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET, fmt.Sprintf("']' to close '[' at %s", open.Pos())); err != nil {
				return nil, err
			}
			x = &Expr{Kind: ExprIndex, Pos: x.Pos, X: x, Y: idx}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (*Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		p.advance()
		text := strings.ReplaceAll(tok.Text(p.source), "_", "")
		d, err := decimal.Parse(text)
		if err != nil {
			return nil, p.errorAt(tok, "invalid number %s: %v", tok.Text(p.source), err)
		}
		return &Expr{Kind: ExprNumber, Pos: tok.Pos(), Num: d}, nil
	case STRING:
		p.advance()
		s, err := p.unquote(tok)
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprString, Pos: tok.Pos(), Str: s}, nil
	case TRUE, FALSE:
		p.advance()
		return &Expr{Kind: ExprBool, Pos: tok.Pos(), Bool: tok.Type == TRUE}, nil
	case IDENT:
		p.advance()
		name := tok.Text(p.source)
		if p.check(LPAREN) {
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprCall, Pos: tok.Pos(), Name: name, Args: args}, nil
		}
		return &Expr{Kind: ExprIdent, Pos: tok.Pos(), Name: name}, nil
	case LPAREN:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, fmt.Sprintf("')' to close '(' at %s", tok.Pos())); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, p.errorAt(tok, "expected an expression, got %s", p.describe(tok))
}

// parseArgs parses a comma separated argument list; the '(' is already consumed.
func (p *Parser) parseArgs() ([]*Expr, error) {
	var args []*Expr
	if p.check(RPAREN) {
		p.advance()
		return args, nil
	}
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.check(COMMA) {
			p.advance()
			continue
		}
		if _, err := p.expect(RPAREN, "',' or ')' in argument list"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *Parser) unquote(tok Token) (string, error) {
	raw := tok.Text(p.source)
	raw = raw[1 : len(raw)-1]
	if !strings.ContainsRune(raw, '\\') {
		return raw, nil
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		i++
		switch raw[i] {
		case '"', '\\':
			b.WriteByte(raw[i])
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			return "", p.errorAt(tok, "unknown escape sequence \\%c", raw[i])
		}
	}
	return b.String(), nil
}

// atAmount reports whether the next tokens are `amount (`.
func (p *Parser) atAmount() bool {
	tok := p.peek()
	return tok.Type == IDENT && tok.Text(p.source) == "amount" && p.peekAhead(1).Type == LPAREN
}

func (p *Parser) atLineEnd() bool {
	switch p.peek().Type {
	case LBRACE, RBRACE, DEBIT, CREDIT, EOF:
		return true
	}
	return false
}

// synchronize skips to the next top-level statement keyword. Statements consume
// their keyword before they can fail, so a keyword here always starts a new one.
func (p *Parser) synchronize() {
	for !p.check(EOF) {
		switch p.peek().Type {
		case LET, REQUIRE, ENTRY, AFTER:
			return
		}
		p.advance()
	}
}

// syncLine skips to the next line statement or the closing brace of the entry block,
// stepping over nested attribute blocks.
func (p *Parser) syncLine() {
	depth := 0
	for !p.check(EOF) {
		switch p.peek().Type {
		case LBRACE:
			depth++
		case RBRACE:
			if depth == 0 {
				return
			}
			depth--
		case DEBIT, CREDIT:
			if depth == 0 {
				return
			}
		case LET, REQUIRE, ENTRY, AFTER:
			return
		}
		p.advance()
	}
}

// skipToClose consumes tokens through the '}' closing the current attribute block.
func (p *Parser) skipToClose() {
	depth := 0
	for !p.check(EOF) {
		switch p.advance().Type {
		case LBRACE:
			depth++
		case RBRACE:
			if depth == 0 {
				return
			}
			depth--
		}
	}
}

func (p *Parser) peek() Token { return p.tokens[p.pos] }

func (p *Parser) peekAhead(n int) Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool { return p.peek().Type == t }

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	tok := p.peek()
	if tok.Type != t {
		return tok, p.errorAt(tok, "expected %s, got %s", what, p.describe(tok))
	}
	return p.advance(), nil
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case IDENT, NUMBER, STRING:
		return fmt.Sprintf("%s %s", tok.Type, tok.Text(p.source))
	}
	return tok.Type.String()
}

func (p *Parser) errorAt(tok Token, format string, args ...any) error {
	if tok.Type == ILLEGAL {
		return errReported
	}
	return &CompileError{Pos: tok.Pos(), Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) report(err error) {
	var ce *CompileError
	if errors.As(err, &ce) {
		p.errs = append(p.errs, ce)
	}
}
