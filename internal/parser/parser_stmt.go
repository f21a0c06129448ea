package parser

import "mimic/internal/ast"

func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.expect(LBRACE, "expected '{'").Position
	var stmts []ast.Stmt
	for !p.check(RBRACE) && !p.atEnd() {
		if s := p.parseStmt(); s != nil {
			stmts = append(stmts, s)
		} else {
			p.synchronize()
		}
	}
	p.expect(RBRACE, "expected '}' to close block")
	return &ast.BlockStmt{Metadata: metaFrom(p, start), Stmts: stmts}
}

func (p *Parser) parseStmt() ast.Stmt {
	// `Type name = init;`: a type name, any number of '*', then the
	// variable name. Lowered to the same LetStmt as `let name Type = init;`.
	if p.check(IDENTIFIER) {
		i := p.current + 1
		for i < len(p.tokens) && p.tokens[i].Type == STAR {
			i++
		}
		if i < len(p.tokens) && p.tokens[i].Type == IDENTIFIER {
			start := p.peek().Position
			t := p.parseType()
			name := p.expect(IDENTIFIER, "expected variable name").Lexeme
			p.expect(ASSIGN, "expected '=' in local declaration")
			init := p.parseExpr(0)
			p.expect(SEMICOLON, "expected ';' after local declaration")
			return &ast.LetStmt{Metadata: metaFrom(p, start), Name: name, Type: t, Init: init}
		}
	}
	switch {
	case p.check(LBRACE):
		return p.parseBlock()
	case p.check(LET), p.check(CONST):
		return p.parseLetStmt()
	case p.check(IF):
		return p.parseIfStmt()
	case p.check(WHILE):
		return p.parseWhileStmt()
	case p.check(RETURN):
		return p.parseReturnStmt()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *Parser) parseLetStmt() ast.Stmt {
	start := p.peek().Position
	isConst := p.match(CONST)
	p.expect(LET, "expected 'let'")
	name := p.expect(IDENTIFIER, "expected variable name").Lexeme
	var t ast.TypeExpr
	if !p.check(ASSIGN) {
		t = p.parseType()
	}
	p.expect(ASSIGN, "expected '=' in let statement")
	init := p.parseExpr(0)
	p.expect(SEMICOLON, "expected ';' after let statement")
	return &ast.LetStmt{Metadata: metaFrom(p, start), Name: name, Type: t, Init: init, Const: isConst}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.advance().Position // 'if'
	p.expect(LPAREN, "expected '(' after 'if'")
	cond := p.parseExpr(0)
	p.expect(RPAREN, "expected ')' after condition")
	then := p.parseBlock()
	var elseStmt ast.Stmt
	if p.match(ELSE) {
		if p.check(IF) {
			elseStmt = p.parseIfStmt()
		} else {
			elseStmt = p.parseBlock()
		}
	}
	return &ast.IfStmt{Metadata: metaFrom(p, start), Cond: cond, Then: then, Else: elseStmt}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.advance().Position // 'while'
	p.expect(LPAREN, "expected '(' after 'while'")
	cond := p.parseExpr(0)
	p.expect(RPAREN, "expected ')' after condition")
	body := p.parseBlock()
	return &ast.WhileStmt{Metadata: metaFrom(p, start), Cond: cond, Body: body}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.advance().Position // 'return'
	var val ast.Expr
	if !p.check(SEMICOLON) {
		val = p.parseExpr(0)
	}
	p.expect(SEMICOLON, "expected ';' after return statement")
	return &ast.ReturnStmt{Metadata: metaFrom(p, start), Value: val}
}

var assignOps = map[TokenType]ast.AssignOp{
	ASSIGN:         ast.Assign,
	PLUS_ASSIGN:    ast.PlusAssign,
	MINUS_ASSIGN:   ast.MinusAssign,
	STAR_ASSIGN:    ast.StarAssign,
	SLASH_ASSIGN:   ast.SlashAssign,
	PERCENT_ASSIGN: ast.PercentAssign,
}

// parseSimpleStmt handles an assignment or a bare expression statement;
// both start with an expression, so the distinction is made by what
// follows it.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	start := p.peek().Position
	expr := p.parseExpr(0)
	if op, ok := assignOps[p.peek().Type]; ok {
		p.advance()
		rhs := p.parseExpr(0)
		p.expect(SEMICOLON, "expected ';' after assignment")
		return &ast.AssignStmt{Metadata: metaFrom(p, start), Target: expr, Op: op, Value: rhs}
	}
	p.expect(SEMICOLON, "expected ';' after expression statement")
	return &ast.ExprStmt{Metadata: metaFrom(p, start), X: expr}
}
