// Package parser implements TreeBuilder, a Pratt-style precedence
// parser. It acts as a lexer.Sink: the tokenizer calls ProcessToken as
// it scans and End() once source is exhausted, at which point
// TreeBuilder parses the buffered tokens into an ast.Ast and hands it
// to a TreeSink.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/monsieurbadia/q5c/ast"
	"github.com/monsieurbadia/q5c/token"
)

// TreeSink receives the finished tree and any parse-error messages
// produced along the way.
type TreeSink interface {
	Ast(a *ast.Ast)
	ParseError(msg string)
}

// TreeBuilder buffers the token stream and parses it on End(), using
// two-token lookahead: cur is the token under consideration, first is
// one token ahead.
type TreeBuilder struct {
	sink TreeSink

	tokens []token.Token
	pos    int

	cur   token.Token
	first token.Token

	errors []string
}

func New(sink TreeSink) *TreeBuilder {
	return &TreeBuilder{
		sink:  sink,
		cur:   token.Token{Kind: token.EOF},
		first: token.Token{Kind: token.EOF},
	}
}

func (p *TreeBuilder) Errors() []string { return p.errors }

// ProcessToken implements lexer.Sink.
func (p *TreeBuilder) ProcessToken(t token.Token) { p.tokens = append(p.tokens, t) }

// End implements lexer.Sink: parses everything buffered so far.
func (p *TreeBuilder) End() {
	p.nextToken()
	p.nextToken()

	tree, _ := p.parseNodesAst()
	p.sink.Ast(tree)
}

func (p *TreeBuilder) nextToken() {
	p.cur = p.first
	if p.pos < len(p.tokens) {
		p.first = p.tokens[p.pos]
		p.pos++
	} else {
		p.first = token.Token{Kind: token.EOF}
	}
}

func (p *TreeBuilder) currentPrecedence() token.PrecedenceKind { return p.cur.Precedence() }

func (p *TreeBuilder) firstIs(k token.Kind) bool { return p.first.Kind == k }

func (p *TreeBuilder) curIsKeyword(name string) bool {
	return (p.cur.Kind == token.KeywordTok || p.cur.Kind == token.Ident) && p.cur.Name == name
}

// expectFirst advances past p.first when its kind matches, or returns
// a descriptive error without advancing.
func (p *TreeBuilder) expectFirst(k token.Kind) error {
	if p.firstIs(k) {
		p.nextToken()
		return nil
	}
	return fmt.Errorf("expected %s, but the next token is %s", k, p.first.Kind)
}

func (p *TreeBuilder) shouldPrecedenceHavePriority(prec token.PrecedenceKind) bool {
	return prec < p.first.Precedence()
}

// --- top-level driver -----------------------------------------------

func (p *TreeBuilder) parseNodesAst() (*ast.Ast, error) {
	tree := ast.New(nil)

	for p.cur.Kind != token.EOF {
		switch p.cur.Kind {
		case token.Indent:
			p.nextToken()
			continue
		default:
			stmt, err := p.parseStmt()
			if err != nil {
				p.errors = append(p.errors, err.Error())
				p.sink.ParseError(err.Error())
				p.skipToNextTopLevel()
				continue
			}
			tree.Add(stmt)
		}
		p.nextToken()
	}

	return tree, nil
}

// skipToNextTopLevel advances past the rest of a malformed statement
// so parsing can resume at the next statement boundary: either the
// next line (the tokenizer's one-Indent-token-per-line contract) or a
// Semicolon on the same line, which it also consumes so the following
// statement starts clean.
func (p *TreeBuilder) skipToNextTopLevel() {
	for p.cur.Kind != token.Indent && p.cur.Kind != token.Semicolon && p.cur.Kind != token.EOF {
		p.nextToken()
	}
	if p.cur.Kind == token.Semicolon {
		p.nextToken()
	}
}

// --- statements -------------------------------------------------------

func (p *TreeBuilder) parseStmt() (*ast.Stmt, error) {
	switch {
	case p.curIsKeyword("use"):
		return p.parseUseStmt()
	case p.curIsKeyword("fun"):
		return p.parseFunStmt()
	case p.curIsKeyword("mut"), p.curIsKeyword("val"):
		return p.parseLocalStmt()
	case p.curIsKeyword("ret"):
		return p.parseRetStmt()
	default:
		return p.parseExprStmt()
	}
}

func (p *TreeBuilder) parseExprStmt() (*ast.Stmt, error) {
	expr, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}
	if p.firstIs(token.Semicolon) {
		p.nextToken()
	}
	return ast.MakeExprStmt(expr), nil
}

func (p *TreeBuilder) parseFunStmt() (*ast.Stmt, error) {
	if err := p.expectFirst(token.Ident); err != nil {
		return nil, err
	}
	name := p.cur.Name

	retTy := ast.UnknownTy()
	if p.firstIs(token.Colon) {
		p.nextToken()
		if err := p.expectFirst(token.Ident); err != nil {
			return nil, err
		}
		retTy = ast.NameRefTy(p.cur.Name)
	}

	if err := p.expectFirst(token.AssignOp); err != nil {
		return nil, err
	}
	if err := p.expectFirst(token.LParen); err != nil {
		return nil, err
	}

	args, err := p.parseFunArgExprs()
	if err != nil {
		return nil, err
	}

	if err := p.expectFirst(token.LBrace); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return ast.MakeFunStmt(name, args, retTy, block), nil
}

func (p *TreeBuilder) parseFunArgExpr() (ast.FunArg, error) {
	p.nextToken()
	if p.cur.Kind != token.Ident {
		return ast.FunArg{}, fmt.Errorf("expected a parameter name, got %s", p.cur.Kind)
	}
	name := p.cur.Name

	if err := p.expectFirst(token.Colon); err != nil {
		return ast.FunArg{}, err
	}
	p.nextToken()
	if p.cur.Kind != token.Ident {
		return ast.FunArg{}, fmt.Errorf("expected a parameter type, got %s", p.cur.Kind)
	}

	return ast.FunArg{Name: name, Immutable: true, Ty: ast.NameRefTy(p.cur.Name)}, nil
}

func (p *TreeBuilder) parseFunArgExprs() ([]ast.FunArg, error) {
	var args []ast.FunArg

	if p.firstIs(token.RParen) {
		p.nextToken()
		return args, nil
	}

	arg, err := p.parseFunArgExpr()
	if err != nil {
		return nil, err
	}
	args = append(args, arg)

	for p.firstIs(token.Comma) {
		p.nextToken()
		arg, err = p.parseFunArgExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if err := p.expectFirst(token.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *TreeBuilder) parseLocalStmt() (*ast.Stmt, error) {
	immutable := p.cur.Name == "val"

	if err := p.expectFirst(token.Ident); err != nil {
		return nil, err
	}
	name := p.cur.Name

	if err := p.expectFirst(token.Colon); err != nil {
		return nil, err
	}
	p.nextToken()
	if p.cur.Kind != token.Ident {
		return nil, fmt.Errorf("expected a type annotation, got %s", p.cur.Kind)
	}
	ty := ast.NameRefTy(p.cur.Name)

	if err := p.expectFirst(token.AssignOp); err != nil {
		return nil, err
	}
	p.nextToken()

	value, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}
	p.nextToken()

	if immutable {
		return ast.MakeValStmt(name, ty, value), nil
	}
	return ast.MakeMutStmt(name, ty, value), nil
}

func (p *TreeBuilder) parseRetStmt() (*ast.Stmt, error) {
	p.nextToken()
	expr, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}
	for !p.firstIs(token.Semicolon) && !p.firstIs(token.EOL) && !p.firstIs(token.EOF) &&
		!p.firstIs(token.RBrace) && !p.firstIs(token.Indent) {
		p.nextToken()
	}
	if p.firstIs(token.Semicolon) {
		p.nextToken()
	}
	return ast.MakeRetStmt(expr), nil
}

func (p *TreeBuilder) parseUseStmt() (*ast.Stmt, error) {
	name, err := p.parseUsePathStmt()
	if err != nil {
		return nil, err
	}
	p.nextToken()
	if _, err := p.parseUntil(token.Semicolon); err != nil {
		return nil, err
	}

	// A use statement has no nested body (spec's grammar is just
	// "Use path[::segments](names?)"); parsing the rest of the program
	// here would swallow every following top-level declaration into
	// this one Stmt.
	return ast.MakeUseStmt(name, nil), nil
}

func (p *TreeBuilder) parseUsePathStmt() (string, error) {
	if err := p.expectFirst(token.At); err != nil {
		return "", err
	}
	p.nextToken()

	parts := []string{p.cur.Text()}
	for p.firstIs(token.ColonColon) {
		p.nextToken()
		p.nextToken()
		parts = append(parts, p.cur.Text())
	}

	if p.firstIs(token.LParen) {
		p.nextToken()
		for p.firstIs(token.Ident) {
			p.nextToken()
		}
	}

	return strings.Join(parts, "::"), nil
}

// --- expressions --------------------------------------------------

func (p *TreeBuilder) parseExpr() (*ast.Expr, error) {
	switch {
	case p.cur.Kind == token.LBrace:
		return p.parseHashExpr()
	case p.cur.Kind == token.LBracket:
		return p.parseArrayExpr()
	case p.cur.Kind == token.LParen:
		return p.parseGroupExpr()
	case p.cur.Kind == token.Ident && p.cur.Name == "true", p.cur.Kind == token.Ident && p.cur.Name == "false":
		return p.parseBoolExpr()
	case p.cur.Kind == token.Ident && p.cur.Name == "for":
		return p.parseLoopForExpr()
	case p.cur.Kind == token.Ident && p.cur.Name == "loop":
		return p.parseLoopLoopExpr()
	case p.cur.Kind == token.Ident && p.cur.Name == "while":
		return p.parseLoopWhileExpr()
	case p.cur.Kind == token.Ident:
		return p.parseIdentExpr()
	case p.cur.Kind == token.Lit && p.cur.Literal.Kind == token.LitReal:
		return p.parseLitRealExpr()
	case p.cur.Kind == token.Lit && p.cur.Literal.Kind == token.LitInt:
		return p.parseLitIntExpr()
	case p.cur.Kind == token.Lit && p.cur.Literal.Kind == token.LitStr:
		return p.parseLitStrExpr()
	case p.cur.Kind == token.Lit && p.cur.Literal.Kind == token.LitChar:
		return p.parseLitCharExpr()
	case p.cur.Kind == token.BinaryOp && p.cur.Binary == token.Sub,
		p.cur.Kind == token.UnaryOp && p.cur.Unary == token.Not:
		return p.parseUnopExpr()
	default:
		return nil, fmt.Errorf("unexpected token in expression position: %s", p.cur.Text())
	}
}

func (p *TreeBuilder) parseExprByPrecedence(prec token.PrecedenceKind) (*ast.Expr, error) {
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	for !p.firstIs(token.Semicolon) && p.shouldPrecedenceHavePriority(prec) {
		p.nextToken()
		node, err = p.parseBinopExprByLhs(node)
		if err != nil {
			return nil, err
		}
	}

	return node, nil
}

func (p *TreeBuilder) parseBinopExprByLhs(lhs *ast.Expr) (*ast.Expr, error) {
	switch p.cur.Kind {
	case token.LBracket:
		return p.parseIndexExpr(lhs)
	case token.LParen:
		return p.parseCallExpr(lhs)
	default:
		return p.parseBinopExpr(lhs)
	}
}

func (p *TreeBuilder) parseBinopExpr(lhs *ast.Expr) (*ast.Expr, error) {
	prec := p.currentPrecedence()
	op, ok := ast.BinOpKindFromToken(p.cur)
	if !ok {
		return nil, fmt.Errorf("%s is not a binary operator", p.cur.Text())
	}

	p.nextToken()

	rhs, err := p.parseExprByPrecedence(prec)
	if err != nil {
		return nil, err
	}

	return ast.MakeBinOpExpr(lhs, op, rhs), nil
}

func (p *TreeBuilder) parseIndexExpr(data *ast.Expr) (*ast.Expr, error) {
	p.nextToken()

	index, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}

	if err := p.expectFirst(token.RBracket); err != nil {
		return nil, err
	}

	return ast.MakeIndexExpr(data, index), nil
}

func (p *TreeBuilder) parseCallExpr(callee *ast.Expr) (*ast.Expr, error) {
	args, err := p.parseUntil(token.RParen)
	if err != nil {
		return nil, err
	}
	return ast.MakeCallExpr(callee, args), nil
}

func (p *TreeBuilder) parseUntil(end token.Kind) ([]*ast.Expr, error) {
	var exprs []*ast.Expr

	if p.firstIs(end) {
		p.nextToken()
		return exprs, nil
	}

	p.nextToken()
	e, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}
	exprs = append(exprs, e)

	for p.firstIs(token.Comma) {
		p.nextToken()
		p.nextToken()
		e, err = p.parseExprByPrecedence(token.Lowest)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}

	if err := p.expectFirst(end); err != nil {
		return nil, err
	}
	return exprs, nil
}

func (p *TreeBuilder) parseArrayExpr() (*ast.Expr, error) {
	data, err := p.parseUntil(token.RBracket)
	if err != nil {
		return nil, err
	}
	return ast.MakeArrayExpr(data), nil
}

func (p *TreeBuilder) parseGroupExpr() (*ast.Expr, error) {
	p.nextToken()

	expr, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}

	if err := p.expectFirst(token.RParen); err != nil {
		return nil, err
	}

	return expr, nil
}

func (p *TreeBuilder) parseIdentExpr() (*ast.Expr, error) {
	if p.cur.Kind != token.Ident {
		return nil, fmt.Errorf("expected an identifier, got %s", p.cur.Text())
	}
	return ast.MakeIdentExpr(p.cur.Name), nil
}

func (p *TreeBuilder) parseBoolExpr() (*ast.Expr, error) {
	return ast.MakeLitBoolExpr(p.cur.Name == "true"), nil
}

func (p *TreeBuilder) parseLitIntExpr() (*ast.Expr, error) {
	text := strings.ReplaceAll(p.cur.Literal.Text, "_", "")
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer literal %q", p.cur.Literal.Text)
	}
	return ast.MakeLitIntExpr(v), nil
}

func (p *TreeBuilder) parseLitRealExpr() (*ast.Expr, error) {
	v, err := strconv.ParseFloat(p.cur.Literal.Text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid real literal %q", p.cur.Literal.Text)
	}
	return ast.MakeLitRealExpr(v), nil
}

func (p *TreeBuilder) parseLitStrExpr() (*ast.Expr, error) {
	return ast.MakeLitStrExpr(p.cur.Literal.Text), nil
}

func (p *TreeBuilder) parseLitCharExpr() (*ast.Expr, error) {
	return ast.MakeLitCharExpr(p.cur.Literal.Ch), nil
}

func (p *TreeBuilder) parseUnopExpr() (*ast.Expr, error) {
	var op ast.UnOpKind
	switch {
	case p.cur.Kind == token.BinaryOp && p.cur.Binary == token.Sub:
		op = ast.Neg
	case p.cur.Kind == token.UnaryOp && p.cur.Unary == token.Not:
		op = ast.Not
	default:
		return nil, fmt.Errorf("%s is not a unary operator", p.cur.Text())
	}

	p.nextToken()

	rhs, err := p.parseExprByPrecedence(token.Unary)
	if err != nil {
		return nil, err
	}

	return ast.MakeUnOpExpr(op, rhs), nil
}

func (p *TreeBuilder) parseHashExpr() (*ast.Expr, error) {
	var entries []ast.HashEntry

	for !p.firstIs(token.RBrace) {
		p.nextToken()

		key, err := p.parseExprByPrecedence(token.Lowest)
		if err != nil {
			return nil, err
		}
		if key.Kind != ast.ExprLit {
			return nil, fmt.Errorf("hash key must be a literal")
		}

		if err := p.expectFirst(token.Colon); err != nil {
			return nil, err
		}
		p.nextToken()

		value, err := p.parseExprByPrecedence(token.Lowest)
		if err != nil {
			return nil, err
		}

		entries = append(entries, ast.HashEntry{Key: key.Lit, Value: value})

		if !p.firstIs(token.RBrace) {
			if err := p.expectFirst(token.Comma); err != nil {
				return nil, err
			}
		}
	}

	if err := p.expectFirst(token.RBrace); err != nil {
		return nil, err
	}

	return ast.MakeHashExpr(entries), nil
}

func (p *TreeBuilder) parseLoopForExpr() (*ast.Expr, error) {
	var iterable *ast.Expr
	var err error

	if p.firstIs(token.LBracket) {
		p.nextToken()
		iterable, err = p.parseArrayExpr()
	} else {
		iterable, err = p.parseIdentExpr()
	}
	if err != nil {
		return nil, err
	}

	p.nextToken()
	if err := p.expectFirst(token.LParen); err != nil {
		return nil, err
	}
	if err := p.expectFirst(token.Ident); err != nil {
		return nil, err
	}

	iterator, err := p.parseIdentExpr()
	if err != nil {
		return nil, err
	}

	if err := p.expectFirst(token.RParen); err != nil {
		return nil, err
	}
	p.nextToken()
	if err := p.expectFirst(token.LBrace); err != nil {
		return nil, err
	}

	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return ast.MakeLoopForExpr(iterable, iterator, block), nil
}

func (p *TreeBuilder) parseLoopLoopExpr() (*ast.Expr, error) {
	if err := p.expectFirst(token.LBrace); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.MakeLoopLoopExpr(block), nil
}

func (p *TreeBuilder) parseLoopWhileExpr() (*ast.Expr, error) {
	p.nextToken()

	cond, err := p.parseExprByPrecedence(token.Lowest)
	if err != nil {
		return nil, err
	}

	if err := p.expectFirst(token.LBrace); err != nil {
		return nil, err
	}

	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return ast.MakeLoopWhileExpr(cond, block), nil
}

func (p *TreeBuilder) parseBlock() (*ast.Block, error) {
	var stmts []*ast.Stmt

	p.nextToken()
	for p.cur.Kind != token.RBrace {
		if p.cur.Kind == token.EOF {
			return ast.NewBlock(stmts), fmt.Errorf("unterminated block")
		}
		if p.cur.Kind == token.Indent {
			p.nextToken()
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return ast.NewBlock(stmts), err
		}
		stmts = append(stmts, stmt)
		p.nextToken()
	}

	return ast.NewBlock(stmts), nil
}
