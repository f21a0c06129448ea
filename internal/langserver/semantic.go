package langserver

import (
	"mimic/internal/ast"
)

// SemanticToken is one LSP semantic-token entry. Line/StartChar are
// 0-based; TokenType/TokenModifiers index SemanticTokenTypes/Modifiers.
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

func collectSemanticTokens(prog *ast.Program) []SemanticToken {
	var tokens []SemanticToken
	for _, s := range prog.Structs {
		tokens = append(tokens, walkStruct(s)...)
	}
	for _, g := range prog.Globals {
		tokens = append(tokens, makeToken(g.Start, g.End, g.Name, "variable", 1))
	}
	for _, fn := range prog.Functions {
		tokens = append(tokens, walkFunc(fn)...)
	}
	return tokens
}

func walkStruct(s *ast.StructDecl) []SemanticToken {
	tokens := []SemanticToken{makeToken(s.Start, s.End, s.Name, "type", 1)}
	for _, f := range s.Fields {
		tokens = append(tokens, makeToken(f.Start, f.End, f.Name, "property", 1))
	}
	return tokens
}

func walkFunc(fn *ast.FuncDecl) []SemanticToken {
	tokens := []SemanticToken{makeToken(fn.Start, fn.End, fn.Name, "function", 1)}
	for _, p := range fn.Params {
		tokens = append(tokens, makeToken(p.Start, p.End, p.Name, "parameter", 0))
	}
	if fn.Body != nil {
		tokens = append(tokens, walkBlock(fn.Body)...)
	}
	return tokens
}

func walkBlock(b *ast.BlockStmt) []SemanticToken {
	var tokens []SemanticToken
	for _, stmt := range b.Stmts {
		tokens = append(tokens, walkStmt(stmt)...)
	}
	return tokens
}

func walkStmt(s ast.Stmt) []SemanticToken {
	switch st := s.(type) {
	case *ast.LetStmt:
		tokens := []SemanticToken{makeToken(st.Start, st.End, st.Name, "variable", 1)}
		return append(tokens, walkExpr(st.Init)...)
	case *ast.AssignStmt:
		return append(walkExpr(st.Target), walkExpr(st.Value)...)
	case *ast.IfStmt:
		tokens := walkExpr(st.Cond)
		tokens = append(tokens, walkBlock(st.Then)...)
		if st.Else != nil {
			tokens = append(tokens, walkStmt(st.Else)...)
		}
		return tokens
	case *ast.WhileStmt:
		return append(walkExpr(st.Cond), walkBlock(st.Body)...)
	case *ast.ReturnStmt:
		if st.Value != nil {
			return walkExpr(st.Value)
		}
	case *ast.ExprStmt:
		return walkExpr(st.X)
	case *ast.BlockStmt:
		return walkBlock(st)
	}
	return nil
}

// walkExpr recurses into the expression tree, emitting a token for
// every identifier reference and function call it finds.
func walkExpr(e ast.Expr) []SemanticToken {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case *ast.IdentExpr:
		return []SemanticToken{makeToken(ex.Start, ex.End, ex.Name, "variable", 0)}
	case *ast.BinaryExpr:
		return append(walkExpr(ex.Left), walkExpr(ex.Right)...)
	case *ast.UnaryExpr:
		return walkExpr(ex.X)
	case *ast.CastExpr:
		return walkExpr(ex.X)
	case *ast.CallExpr:
		tokens := []SemanticToken{makeToken(ex.Start, ex.End, ex.Callee, "function", 0)}
		for _, a := range ex.Args {
			tokens = append(tokens, walkExpr(a)...)
		}
		return tokens
	case *ast.FieldAccessExpr:
		tokens := walkExpr(ex.X)
		return append(tokens, makeToken(ex.Start, ex.End, ex.Field, "property", 0))
	case *ast.IndexExpr:
		return append(walkExpr(ex.X), walkExpr(ex.Index)...)
	case *ast.ParenExpr:
		return walkExpr(ex.X)
	}
	return nil
}

func makeToken(start, end ast.Position, value, tokenType string, decl int) SemanticToken {
	length := end.Column - start.Column
	if length <= 0 {
		length = len(value)
	}
	return SemanticToken{
		Line:           uint32(zeroFloor(start.Line - 1)),
		StartChar:      uint32(zeroFloor(start.Column - 1)),
		Length:         uint32(length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: decl << uint(indexOf("declaration", SemanticTokenModifiers)),
	}
}

func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}
