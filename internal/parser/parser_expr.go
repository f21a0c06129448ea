package parser

import "mimic/internal/ast"

// binaryPrecedence is the standard C operator-precedence table,
// extended with the bitwise operators this grammar adds.
var binaryPrecedence = map[TokenType]int{
	OR_OR:   1,
	AND_AND: 2,
	PIPE:    3,
	CARET:   4,
	AMP:     5,
	EQ:      6, NE: 6,
	LT: 7, LE: 7, GT: 7, GE: 7,
	SHL: 8, SHR: 8,
	PLUS: 9, MINUS: 9,
	STAR: 10, SLASH: 10, PERCENT: 10,
}

var binaryOpOf = map[TokenType]ast.BinaryOp{
	OR_OR: ast.LogOr, AND_AND: ast.LogAnd,
	PIPE: ast.Or, CARET: ast.Xor, AMP: ast.And,
	EQ: ast.Eq, NE: ast.Ne,
	LT: ast.Lt, LE: ast.Le, GT: ast.Gt, GE: ast.Ge,
	SHL: ast.Shl, SHR: ast.Shr,
	PLUS: ast.Add, MINUS: ast.Sub,
	STAR: ast.Mul, SLASH: ast.Div, PERCENT: ast.Mod,
}

// parseExpr implements precedence-climbing (Pratt) parsing.
func (p *Parser) parseExpr(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		prec, ok := binaryPrecedence[p.peek().Type]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.advance()
		right := p.parseExpr(prec + 1)
		left = &ast.BinaryExpr{
			Metadata: &ast.Metadata{Start: left.NodePos(), End: right.NodeEndPos()},
			Op:       binaryOpOf[opTok.Type],
			Left:     left,
			Right:    right,
		}
	}
	return left
}

var unaryOpOf = map[TokenType]ast.UnaryOp{
	MINUS: ast.Neg, BANG: ast.Not, TILDE: ast.BitNot, AMP: ast.AddrOf, STAR: ast.Deref,
}

func (p *Parser) parseUnary() ast.Expr {
	if op, ok := unaryOpOf[p.peek().Type]; ok {
		start := p.advance().Position
		x := p.parseUnary()
		return &ast.UnaryExpr{Metadata: metaFrom(p, start), Op: op, X: x}
	}
	if p.check(LPAREN) && p.looksLikeCast() {
		start := p.advance().Position // '('
		t := p.parseType()
		p.expect(RPAREN, "expected ')' after cast type")
		x := p.parseUnary()
		return &ast.CastExpr{Metadata: metaFrom(p, start), Type: t, X: x}
	}
	return p.parsePostfix(p.parsePrimary())
}

// looksLikeCast distinguishes `(T) x` from a parenthesized expression by
// checking whether the token after '(' is a known type-starting token.
// MimiC has no user-definable identifiers that are simultaneously in
// scope as both a variable and a type, so a leading identifier followed
// by ')' is only ever a cast when what follows can't start an expression
// on its own; conservatively only primitive/void keywords trigger the
// cast path to avoid misparsing `(x)` as a cast to type `x`.
func (p *Parser) looksLikeCast() bool {
	next := p.tokens[p.current+1]
	switch next.Type {
	case VOID:
		return true
	case IDENTIFIER:
		switch next.Lexeme {
		case "i8", "u8", "i32", "u32":
			return true
		}
	}
	return false
}

func (p *Parser) parsePostfix(expr ast.Expr) ast.Expr {
	for {
		switch {
		case p.match(DOT):
			name := p.expect(IDENTIFIER, "expected field name after '.'").Lexeme
			expr = &ast.FieldAccessExpr{Metadata: metaFrom(p, astPosToScanPos(expr.NodePos())), X: expr, Field: name}
		case p.match(LBRACKET):
			idx := p.parseExpr(0)
			p.expect(RBRACKET, "expected ']' after index")
			expr = &ast.IndexExpr{Metadata: metaFrom(p, astPosToScanPos(expr.NodePos())), X: expr, Index: idx}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.peek().Position
	switch {
	case p.check(NUMBER):
		lit := p.advance().Lexeme
		return &ast.LiteralExpr{Metadata: metaFrom(p, start), Kind: ast.IntLiteral, Int: int64(parseIntLiteral(lit))}
	case p.check(STRING):
		lit := p.advance().Lexeme
		return &ast.LiteralExpr{Metadata: metaFrom(p, start), Kind: ast.StringLiteral, Str: lit}
	case p.check(LPAREN):
		p.advance()
		inner := p.parseExpr(0)
		p.expect(RPAREN, "expected ')' to close parenthesized expression")
		return &ast.ParenExpr{Metadata: metaFrom(p, start), X: inner}
	case p.check(IDENTIFIER):
		name := p.advance().Lexeme
		if p.check(LPAREN) {
			return p.parseCall(start, name)
		}
		return &ast.IdentExpr{Metadata: metaFrom(p, start), Name: name}
	default:
		p.errorf("expected an expression, got %q", p.peek().Lexeme)
		p.advance()
		return &ast.LiteralExpr{Metadata: metaFrom(p, start), Kind: ast.IntLiteral, Int: 0}
	}
}

func (p *Parser) parseCall(start Position, callee string) ast.Expr {
	p.expect(LPAREN, "expected '('")
	var args []ast.Expr
	for !p.check(RPAREN) && !p.atEnd() {
		args = append(args, p.parseExpr(0))
		if !p.match(COMMA) {
			break
		}
	}
	p.expect(RPAREN, "expected ')' after arguments")
	return &ast.CallExpr{Metadata: metaFrom(p, start), Callee: callee, Args: args}
}

// astPosToScanPos converts an ast.Position back to a parser.Position so
// it can feed metaFrom, which is expressed in terms of the scanner's
// position type; the two are structurally identical.
func astPosToScanPos(pos ast.Position) Position {
	return Position{Filename: pos.Filename, Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}
