package parser

import (
	"fmt"
	"strconv"
	"strings"

	"mimic/internal/ast"
)

// ParseError is a syntax diagnostic, collected rather than raised so the
// parser can recover to the next statement/declaration boundary.
type ParseError struct {
	Message  string
	Position Position
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Position.Filename, e.Position.Line, e.Position.Column, e.Message)
}

type Parser struct {
	filename string
	tokens   []Token
	current  int
	errors   []ParseError
}

func NewParser(filename string, tokens []Token) *Parser {
	return &Parser{filename: filename, tokens: tokens}
}

// ParseSource scans and parses a full MimiC translation unit.
func ParseSource(filename, source string) (*ast.Program, []ScanError, []ParseError) {
	scanner := NewScanner(filename, source)
	tokens, scanErrs := scanner.ScanTokens()
	p := NewParser(filename, tokens)
	prog := p.ParseProgram()
	return prog, scanErrs, p.errors
}

func (p *Parser) peek() Token     { return p.tokens[p.current] }
func (p *Parser) previous() Token { return p.tokens[p.current-1] }
func (p *Parser) atEnd() bool     { return p.peek().Type == EOF }

func (p *Parser) check(t TokenType) bool {
	return !p.atEnd() && p.peek().Type == t
}

func (p *Parser) advance() Token {
	if !p.atEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(t TokenType, msg string) Token {
	if p.check(t) {
		return p.advance()
	}
	p.errorf(msg)
	return p.peek()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, ParseError{Message: fmt.Sprintf(format, args...), Position: p.peek().Position})
}

func (p *Parser) toPos(tp Position) ast.Position {
	return ast.Position{Filename: tp.Filename, Offset: tp.Offset, Line: tp.Line, Column: tp.Column}
}

// synchronize skips tokens until a likely statement/declaration boundary,
// so one syntax error does not cascade into a wall of spurious ones.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.previous().Type == SEMICOLON {
			return
		}
		switch p.peek().Type {
		case FN, STRUCT, LET, IF, WHILE, RETURN:
			return
		}
		p.advance()
	}
}

func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.atEnd() {
		switch {
		case p.check(STRUCT):
			prog.Structs = append(prog.Structs, p.parseStruct())
		case p.check(FN), p.check(STATIC), p.check(EXTERN), p.check(INLINE), p.check(IDENTIFIER), p.check(VOID):
			if decl := p.parseTopLevel(); decl != nil {
				switch d := decl.(type) {
				case *ast.FuncDecl:
					prog.Functions = append(prog.Functions, d)
				case *ast.GlobalDecl:
					prog.Globals = append(prog.Globals, d)
				}
			}
		default:
			p.errorf("expected a declaration, got %q", p.peek().Lexeme)
			p.synchronize()
		}
	}
	return prog
}

func (p *Parser) parseLinkage() ast.Linkage {
	switch {
	case p.match(STATIC):
		return ast.Internal
	case p.match(INLINE):
		return ast.Inline
	case p.match(EXTERN):
		return ast.External
	default:
		return ast.External
	}
}

func (p *Parser) parseTopLevel() ast.Node {
	linkage := p.parseLinkage()
	typeExpr := p.parseType()
	name := p.expect(IDENTIFIER, "expected a name").Lexeme

	if p.check(LPAREN) {
		return p.parseFuncDecl(linkage, typeExpr, name)
	}
	return p.parseGlobalDecl(linkage, typeExpr, name)
}

func (p *Parser) parseFuncDecl(linkage ast.Linkage, ret ast.TypeExpr, name string) *ast.FuncDecl {
	start := p.previous().Position
	p.expect(LPAREN, "expected '(' after function name")
	var params []*ast.Param
	for !p.check(RPAREN) && !p.atEnd() {
		pt := p.parseType()
		pn := p.expect(IDENTIFIER, "expected parameter name")
		params = append(params, &ast.Param{Metadata: metaFrom(p, pn.Position), Name: pn.Lexeme, Type: pt})
		if !p.match(COMMA) {
			break
		}
	}
	p.expect(RPAREN, "expected ')' after parameters")

	var body *ast.BlockStmt
	if p.check(LBRACE) {
		body = p.parseBlock()
	} else {
		p.expect(SEMICOLON, "expected ';' after function declaration")
	}
	return &ast.FuncDecl{
		Metadata: metaFrom(p, start),
		Name:     name,
		Params:   params,
		Ret:      ret,
		Body:     body,
		Linkage:  linkage,
		Inline:   linkage == ast.Inline,
	}
}

func (p *Parser) parseGlobalDecl(linkage ast.Linkage, t ast.TypeExpr, name string) *ast.GlobalDecl {
	start := p.previous().Position
	var init ast.Expr
	if p.match(ASSIGN) {
		init = p.parseExpr(0)
	}
	p.expect(SEMICOLON, "expected ';' after global declaration")
	return &ast.GlobalDecl{Metadata: metaFrom(p, start), Name: name, Type: t, Init: init, Linkage: linkage}
}

func (p *Parser) parseStruct() *ast.StructDecl {
	start := p.advance().Position // 'struct'
	name := p.expect(IDENTIFIER, "expected struct name").Lexeme
	p.expect(LBRACE, "expected '{' after struct name")
	var fields []*ast.FieldDecl
	for !p.check(RBRACE) && !p.atEnd() {
		ft := p.parseType()
		fn := p.expect(IDENTIFIER, "expected field name")
		meta := metaFrom(p, fn.Position)
		p.expect(SEMICOLON, "expected ';' after field")
		fields = append(fields, &ast.FieldDecl{Metadata: meta, Name: fn.Lexeme, Type: ft})
	}
	p.expect(RBRACE, "expected '}' to close struct")
	return &ast.StructDecl{Metadata: metaFrom(p, start), Name: name, Fields: fields}
}

func (p *Parser) parseType() ast.TypeExpr {
	start := p.peek().Position
	constQual := p.match(CONST)
	var base ast.TypeExpr
	switch {
	case p.check(VOID), p.check(IDENTIFIER):
		name := p.advance().Lexeme
		base = ast.NewNamedType(p.toPos(start), name)
	default:
		p.errorf("expected a type name")
		base = ast.NewNamedType(p.toPos(start), "<error>")
	}
	for p.match(STAR) {
		base = &ast.PointerType{Metadata: metaFrom(p, start), Elem: base}
	}
	if p.match(LBRACKET) {
		n := 0
		if p.check(NUMBER) {
			n = parseIntLiteral(p.advance().Lexeme)
		}
		p.expect(RBRACKET, "expected ']' after array length")
		base = &ast.ArrayType{Metadata: metaFrom(p, start), Elem: base, Len: n}
	}
	if constQual {
		base = &ast.ConstType{Metadata: metaFrom(p, start), Inner: base}
	}
	return base
}

func metaFrom(p *Parser, start Position) *ast.Metadata {
	return &ast.Metadata{Start: p.toPos(start), End: p.toPos(p.previous().Position)}
}

func parseIntLiteral(lexeme string) int {
	if strings.HasPrefix(lexeme, "0x") || strings.HasPrefix(lexeme, "0X") {
		v, _ := strconv.ParseInt(lexeme[2:], 16, 64)
		return int(v)
	}
	v, _ := strconv.ParseInt(lexeme, 10, 64)
	return int(v)
}
