// Package compiler implements Lox's single-pass Pratt parser/compiler: it
// consumes tokens from pkg/lexer and emits bytecode directly into the
// Chunk of a currently-compiling Function, with no intermediate AST.
//
// Grounded on the teacher's pkg/compiler/compiler.go (Compiler struct
// shape, emit/addConstant helpers, doc-comment density) and its
// pkg/parser/parser.go (precedence-table-driven expression parsing) —
// collapsed into one package and one pass, since spec.md §1/§9/§4.2 rule
// out an intermediate representation that smog's three-stage pipeline
// relies on.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kristofer/lox/pkg/chunk"
	"github.com/kristofer/lox/pkg/lexer"
	"github.com/kristofer/lox/pkg/object"
	"github.com/kristofer/lox/pkg/value"
)

// Interner is the subset of VM behavior the compiler depends on: producing
// the single String instance for a given byte sequence, deduplicated
// against the same table the VM interns into at runtime. Expressed as an
// interface, rather than a concrete *table.Table, so pkg/compiler need not
// import pkg/table directly and the VM can track every interned string
// into its garbage-collected object list as it is created.
type Interner interface {
	Intern(s string) *object.String
}

// Precedence levels, ascending, matching spec.md §4.2.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(p *parser, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// fnKind distinguishes the compiled unit currently being built, matching
// spec.md §4.2's Script | Function | Method | Initializer.
type fnKind int

const (
	kindFunction fnKind = iota
	kindInitializer
	kindMethod
	kindScript
)

const maxLocals = 256
const maxUpvalues = 256
const maxParams = 255

type local struct {
	name       string
	depth      int // -1 while uninitialized
	isCaptured bool
}

type upvalRef struct {
	index   byte
	isLocal bool
}

// loopState tracks the pending break jumps and the loop-start offset for
// one enclosing loop, so `break` can patch forward to the loop's exit once
// the loop finishes compiling. localCount snapshots the compiler's local
// count at the moment the loop was entered, so breakStatement can emit the
// same per-local cleanup endScope would emit for everything declared since
// — a break skips straight past any nested blocks' own endScope calls, so
// it must redo their cleanup itself.
type loopState struct {
	enclosing  *loopState
	start      int
	breaks     []int
	localCount int
}

// funcState is one activation of the compiler: one per nested function,
// method, or the top-level script, linked through enclosing the way
// spec.md §4.2 requires for upvalue resolution to walk outward.
type funcState struct {
	enclosing *funcState
	function  *object.Function
	kind      fnKind

	locals     []local
	upvalues   []upvalRef
	scopeDepth int

	loop *loopState
}

func newFuncState(enclosing *funcState, kind fnKind, name string) *funcState {
	fn := object.NewFunction()
	if name != "" {
		fn.Name = object.NewString(name)
	}
	fs := &funcState{enclosing: enclosing, function: fn, kind: kind}
	// Slot 0 is reserved: the receiver for methods/initializers, the
	// callee closure itself for plain functions and the script.
	slotName := ""
	if kind == kindMethod || kind == kindInitializer {
		slotName = "this"
	}
	fs.locals = append(fs.locals, local{name: slotName, depth: 0})
	return fs
}

// classState tracks one nested class definition, so `super` expressions
// can be rejected outside a subclass and `this`/`super` locals can be
// scoped correctly.
type classState struct {
	enclosing      *classState
	hasSuperclass  bool
}

// parser is the single-pass compiler's global state: the token cursor, the
// current function and class being built, and accumulated diagnostics.
// Matches spec.md §9's "global parser/compiler/VM state is acceptable
// (single-threaded)" note.
type parser struct {
	lex      *lexer.Lexer
	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool
	errs      []error

	fn    *funcState
	class *classState

	interned Interner
}

// Compile lexes and compiles source into a top-level script Function. On
// failure it returns a nil Function and a combined compile error; spec.md
// §7 requires no Function be produced when any error was reported.
// interned is the VM's intern table: string literals and identifiers
// compiled here are interned into the same table the VM interns into at
// runtime, preserving the "equal content, same object" invariant across
// the compile/run boundary.
func Compile(source string, interned Interner) (*object.Function, error) {
	p := &parser{lex: lexer.New(source), interned: interned}
	p.fn = newFuncState(nil, kindScript, "")

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
	}
	fn := p.endFunction()

	if p.hadError {
		return nil, errors.Wrap(combine(p.errs), "compile error")
	}
	return fn, nil
}

func combine(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return errors.New(strings.Join(msgs, "\n"))
}

// --- token stream -----------------------------------------------------

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(t lexer.TokenType, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

func (p *parser) errorAt(tok lexer.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenError:
		// lexeme is already the message
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errs = append(p.errs, errors.Errorf("[line %d] Error%s: %s", tok.Line, where, msg))
}

// synchronize discards tokens until a likely statement boundary, so
// compilation can continue reporting independent errors after the first
// (spec.md §4.2).
func (p *parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn, lexer.TokenBreak:
			return
		}
		p.advance()
	}
}

// --- emission -----------------------------------------------------------

func (p *parser) currentChunk() *chunk.Chunk { return p.fn.function.Chunk }

func (p *parser) emitByte(b byte) { p.currentChunk().Write(b, p.previous.Line) }

func (p *parser) emitOp(op chunk.OpCode) { p.currentChunk().WriteOp(op, p.previous.Line) }

func (p *parser) emitOpByte(op chunk.OpCode, operand byte) {
	p.emitOp(op)
	p.emitByte(operand)
}

func (p *parser) emitReturn() {
	if p.fn.kind == kindInitializer {
		p.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.emitOp(chunk.OpReturn)
}

func (p *parser) makeConstant(val value.Value) byte {
	idx := p.currentChunk().AddConstant(val)
	if idx > 255 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (p *parser) emitConstant(val value.Value) {
	p.emitOpByte(chunk.OpConstant, p.makeConstant(val))
}

// emitJump writes a placeholder 16-bit jump and returns the offset of its
// first operand byte, to be patched later by patchJump.
func (p *parser) emitJump(op chunk.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.currentChunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	jump := len(p.currentChunk().Code) - offset - 2
	if jump > 65535 {
		p.error("Too much code to jump over.")
		return
	}
	p.currentChunk().Code[offset] = byte(jump >> 8)
	p.currentChunk().Code[offset+1] = byte(jump)
}

func (p *parser) emitLoop(loopStart int) {
	p.emitOp(chunk.OpLoop)
	offset := len(p.currentChunk().Code) - loopStart + 2
	if offset > 65535 {
		p.error("Loop body too large.")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset))
}

func (p *parser) internString(s string) *object.String {
	return p.interned.Intern(s)
}

func (p *parser) identifierConstant(name string) byte {
	return p.makeConstant(value.ObjValue(p.internString(name)))
}

// endFunction finalizes the current funcState's Function (emitting an
// implicit return) and pops back to its enclosing funcState.
func (p *parser) endFunction() *object.Function {
	p.emitReturn()
	fn := p.fn.function
	fn.UpvalueCnt = len(p.fn.upvalues)
	p.fn = p.fn.enclosing
	return fn
}

// --- scopes & variables ---------------------------------------------------

func (p *parser) beginScope() { p.fn.scopeDepth++ }

func (p *parser) endScope() {
	p.fn.scopeDepth--
	for len(p.fn.locals) > 0 && p.fn.locals[len(p.fn.locals)-1].depth > p.fn.scopeDepth {
		last := p.fn.locals[len(p.fn.locals)-1]
		if last.isCaptured {
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			p.emitOp(chunk.OpPop)
		}
		p.fn.locals = p.fn.locals[:len(p.fn.locals)-1]
	}
}

func (p *parser) addLocal(name string) {
	if len(p.fn.locals) >= maxLocals {
		p.error("Too many local variables in function.")
		return
	}
	p.fn.locals = append(p.fn.locals, local{name: name, depth: -1})
}

func (p *parser) declareVariable(name string) {
	if p.fn.scopeDepth == 0 {
		return
	}
	for i := len(p.fn.locals) - 1; i >= 0; i-- {
		l := p.fn.locals[i]
		if l.depth != -1 && l.depth < p.fn.scopeDepth {
			break
		}
		if l.name == name {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *parser) parseVariable(msg string) byte {
	p.consume(lexer.TokenIdentifier, msg)
	name := p.previous.Lexeme
	p.declareVariable(name)
	if p.fn.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(name)
}

func (p *parser) markInitialized() {
	if p.fn.scopeDepth == 0 {
		return
	}
	p.fn.locals[len(p.fn.locals)-1].depth = p.fn.scopeDepth
}

func (p *parser) defineVariable(global byte) {
	if p.fn.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(chunk.OpDefineGlobal, global)
}

func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				return -2 // sentinel: read before initialization
			}
			return i
		}
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		return -1
	}
	fs.upvalues = append(fs.upvalues, upvalRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

// resolveUpvalue walks outward through enclosing funcStates looking for
// name as a local, marking it captured and threading an Upvalue chain
// through every intervening level, per spec.md §4.2.
func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	local := resolveLocal(fs.enclosing, name)
	if local >= 0 {
		fs.enclosing.locals[local].isCaptured = true
		return addUpvalue(fs, byte(local), true)
	}
	upvalue := resolveUpvalue(fs.enclosing, name)
	if upvalue >= 0 {
		return addUpvalue(fs, byte(upvalue), false)
	}
	return -1
}

// --- declarations ---------------------------------------------------------

func (p *parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenFun):
		p.funDeclaration()
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	name := p.previous.Lexeme
	p.markInitialized()
	p.function(kindFunction, name)
	p.defineVariable(global)
}

func (p *parser) function(kind fnKind, name string) {
	p.fn = newFuncState(p.fn, kind, name)
	p.beginScope()

	p.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !p.check(lexer.TokenRightParen) {
		for {
			p.fn.function.Arity++
			if p.fn.function.Arity > maxParams {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	p.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	p.block()

	upvalues := p.fn.upvalues
	fn := p.endFunction()

	p.emitOpByte(chunk.OpClosure, p.makeConstant(value.ObjValue(fn)))
	for _, uv := range upvalues {
		b := byte(0)
		if uv.isLocal {
			b = 1
		}
		p.emitByte(b)
		p.emitByte(uv.index)
	}
}

func (p *parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "Expect class name.")
	nameTok := p.previous
	className := nameTok.Lexeme
	nameConstant := p.identifierConstant(className)
	p.declareVariable(className)

	p.emitOpByte(chunk.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cs := &classState{enclosing: p.class}
	p.class = cs

	if p.match(lexer.TokenLess) {
		p.consume(lexer.TokenIdentifier, "Expect superclass name.")
		if p.previous.Lexeme == className {
			p.error("A class can't inherit from itself.")
		}
		p.namedVariable(p.previous.Lexeme, false)

		p.beginScope()
		p.addLocal("super")
		p.defineVariable(0)

		p.namedVariable(className, false)
		p.emitOp(chunk.OpInherit)
		cs.hasSuperclass = true
	}

	p.namedVariable(className, false)
	p.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	p.emitOp(chunk.OpPop) // the class value pushed by namedVariable above

	if cs.hasSuperclass {
		p.endScope()
	}
	p.class = cs.enclosing
}

func (p *parser) method() {
	p.consume(lexer.TokenIdentifier, "Expect method name.")
	name := p.previous.Lexeme
	constant := p.identifierConstant(name)

	kind := kindMethod
	if name == "init" {
		kind = kindInitializer
	}
	p.function(kind, name)
	p.emitOpByte(chunk.OpMethod, constant)
}

func (p *parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")
	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(chunk.OpNil)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

// --- statements -------------------------------------------------------

func (p *parser) statement() {
	switch {
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenBreak):
		p.breakStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	p.emitOp(chunk.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()

	elseJump := p.emitJump(chunk.OpJump)
	p.patchJump(thenJump)
	p.emitOp(chunk.OpPop)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.currentChunk().Code)
	ls := &loopState{enclosing: p.fn.loop, start: loopStart, localCount: len(p.fn.locals)}
	p.fn.loop = ls

	p.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(chunk.OpPop)

	for _, b := range ls.breaks {
		p.patchJump(b)
	}
	p.fn.loop = ls.enclosing
}

func (p *parser) forStatement() {
	p.beginScope()
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	if p.match(lexer.TokenSemicolon) {
		// no initializer
	} else if p.match(lexer.TokenVar) {
		p.varDeclaration()
	} else {
		p.expressionStatement()
	}

	loopStart := len(p.currentChunk().Code)
	ls := &loopState{enclosing: p.fn.loop, start: loopStart, localCount: len(p.fn.locals)}
	p.fn.loop = ls

	exitJump := -1
	if !p.match(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(chunk.OpJumpIfFalse)
		p.emitOp(chunk.OpPop)
	}

	if !p.match(lexer.TokenRightParen) {
		bodyJump := p.emitJump(chunk.OpJump)
		incrementStart := len(p.currentChunk().Code)
		p.expression()
		p.emitOp(chunk.OpPop)
		p.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		ls.start = loopStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(chunk.OpPop)
	}

	for _, b := range ls.breaks {
		p.patchJump(b)
	}
	p.fn.loop = ls.enclosing
	p.endScope()
}

func (p *parser) returnStatement() {
	if p.fn.kind == kindScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.fn.kind == kindInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	p.emitOp(chunk.OpReturn)
}

func (p *parser) breakStatement() {
	if p.fn.loop == nil {
		p.error("Can't use 'break' outside of a loop.")
		p.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
		return
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")

	// break jumps straight past every enclosing block's own endScope, so
	// it must emit that cleanup itself for every local declared since the
	// loop was entered (mirroring endScope's OP_POP/OP_CLOSE_UPVALUE choice
	// per local), or the runtime stack desyncs from what the compiler's
	// local bookkeeping assumes has already been popped.
	for i := len(p.fn.locals) - 1; i >= p.fn.loop.localCount; i-- {
		if p.fn.locals[i].isCaptured {
			p.emitOp(chunk.OpCloseUpvalue)
		} else {
			p.emitOp(chunk.OpPop)
		}
	}

	jump := p.emitJump(chunk.OpJump)
	p.fn.loop.breaks = append(p.fn.loop.breaks, jump)
}

// --- expressions (Pratt) ------------------------------------------------

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := getRule(p.previous.Type)
	if rule.prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.error("Invalid assignment target.")
	}
}

func grouping(p *parser, _ bool) {
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func number(p *parser, _ bool) {
	text := lexer.StripDigitSeparators(p.previous.Lexeme)
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(value.NumberValue(n))
}

func stringLiteral(p *parser, _ bool) {
	raw := p.previous.Lexeme
	content := raw[1 : len(raw)-1] // strip the surrounding quotes
	p.emitConstant(value.ObjValue(p.internString(content)))
}

func literal(p *parser, _ bool) {
	switch p.previous.Type {
	case lexer.TokenFalse:
		p.emitOp(chunk.OpFalse)
	case lexer.TokenTrue:
		p.emitOp(chunk.OpTrue)
	case lexer.TokenNil:
		p.emitOp(chunk.OpNil)
	}
}

func (p *parser) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg := resolveLocal(p.fn, name)
	switch {
	case arg == -2:
		p.error("Can't read local variable in its own initializer.")
		arg = 0
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	case arg != -1:
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	default:
		if u := resolveUpvalue(p.fn, name); u != -1 {
			arg = u
			getOp, setOp = chunk.OpGetUpvalue, chunk.OpSetUpvalue
		} else {
			arg = int(p.identifierConstant(name))
			getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		}
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

func variable(p *parser, canAssign bool) { p.namedVariable(p.previous.Lexeme, canAssign) }

func this(p *parser, _ bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	variable(p, false)
}

func super_(p *parser, _ bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	p.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := p.identifierConstant(p.previous.Lexeme)

	p.namedVariable("this", false)
	if p.match(lexer.TokenLeftParen) {
		argCount := p.argumentList()
		p.namedVariable("super", false)
		p.emitOpByte(chunk.OpInvokeSuper, name)
		p.emitByte(argCount)
	} else {
		p.namedVariable("super", false)
		p.emitOpByte(chunk.OpGetSuper, name)
	}
}

func unary(p *parser, _ bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenBang:
		p.emitOp(chunk.OpNot)
	case lexer.TokenMinus:
		p.emitOp(chunk.OpNegate)
	}
}

func binary(p *parser, _ bool) {
	opType := p.previous.Type
	r := getRule(opType)
	p.parsePrecedence(r.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		p.emitOp(chunk.OpEqual)
		p.emitOp(chunk.OpNot)
	case lexer.TokenEqualEqual:
		p.emitOp(chunk.OpEqual)
	case lexer.TokenGreater:
		p.emitOp(chunk.OpGreater)
	case lexer.TokenGreaterEqual:
		p.emitOp(chunk.OpLess)
		p.emitOp(chunk.OpNot)
	case lexer.TokenLess:
		p.emitOp(chunk.OpLess)
	case lexer.TokenLessEqual:
		p.emitOp(chunk.OpGreater)
		p.emitOp(chunk.OpNot)
	case lexer.TokenPlus:
		p.emitOp(chunk.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(chunk.OpSubtract)
	case lexer.TokenStar:
		p.emitOp(chunk.OpMultiply)
	case lexer.TokenSlash:
		p.emitOp(chunk.OpDivide)
	}
}

func and_(p *parser, _ bool) {
	endJump := p.emitJump(chunk.OpJumpIfFalse)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func or_(p *parser, _ bool) {
	elseJump := p.emitJump(chunk.OpJumpIfFalse)
	endJump := p.emitJump(chunk.OpJump)
	p.patchJump(elseJump)
	p.emitOp(chunk.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) argumentList() byte {
	count := 0
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(count)
}

func call(p *parser, _ bool) {
	argCount := p.argumentList()
	p.emitOpByte(chunk.OpCall, argCount)
}

func dot(p *parser, canAssign bool) {
	p.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous.Lexeme)

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitOpByte(chunk.OpSetProperty, name)
	case p.match(lexer.TokenLeftParen):
		argCount := p.argumentList()
		p.emitOpByte(chunk.OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitOpByte(chunk.OpGetProperty, name)
	}
}

var rules map[lexer.TokenType]rule

func init() {
	rules = map[lexer.TokenType]rule{
		lexer.TokenLeftParen:    {grouping, call, precCall},
		lexer.TokenDot:          {nil, dot, precCall},
		lexer.TokenMinus:        {unary, binary, precTerm},
		lexer.TokenPlus:         {nil, binary, precTerm},
		lexer.TokenSlash:        {nil, binary, precFactor},
		lexer.TokenStar:         {nil, binary, precFactor},
		lexer.TokenBang:         {unary, nil, precNone},
		lexer.TokenBangEqual:    {nil, binary, precEquality},
		lexer.TokenEqualEqual:   {nil, binary, precEquality},
		lexer.TokenGreater:      {nil, binary, precComparison},
		lexer.TokenGreaterEqual: {nil, binary, precComparison},
		lexer.TokenLess:         {nil, binary, precComparison},
		lexer.TokenLessEqual:    {nil, binary, precComparison},
		lexer.TokenIdentifier:   {variable, nil, precNone},
		lexer.TokenString:       {stringLiteral, nil, precNone},
		lexer.TokenInteger:      {number, nil, precNone},
		lexer.TokenFloat:        {number, nil, precNone},
		lexer.TokenAnd:          {nil, and_, precAnd},
		lexer.TokenOr:           {nil, or_, precOr},
		lexer.TokenFalse:        {literal, nil, precNone},
		lexer.TokenTrue:         {literal, nil, precNone},
		lexer.TokenNil:          {literal, nil, precNone},
		lexer.TokenThis:         {this, nil, precNone},
		lexer.TokenSuper:        {super_, nil, precNone},
	}
}

func getRule(t lexer.TokenType) rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return rule{nil, nil, precNone}
}
