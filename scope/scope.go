// Package scope implements the lexical-scope stack the lowering
// layer consults: a stack of name->Fun/name->Local maps searched
// top-to-bottom, grounded on the original converter's Scope /
// ScopeStack.
package scope

import (
	"fmt"

	"github.com/monsieurbadia/q5c/ast"
)

type funEntry struct {
	name string
	fun  *ast.Fun
}

type localEntry struct {
	name  string
	local *ast.Local
}

// Scope is a single lexical level: a map of declared functions and a
// map of declared variables.
type Scope struct {
	functions map[uint64]funEntry
	variables map[uint64]localEntry
}

func newScope() *Scope {
	return &Scope{
		functions: make(map[uint64]funEntry),
		variables: make(map[uint64]localEntry),
	}
}

func (s *Scope) addFunction(fun *ast.Fun) error {
	if _, ok := s.getFunction(fun.Name); ok {
		return fmt.Errorf("function %q already exists in this scope", fun.Name)
	}
	s.functions[symbolKey(fun.Name)] = funEntry{name: fun.Name, fun: fun}
	return nil
}

func (s *Scope) addVariable(local *ast.Local) error {
	if _, ok := s.getVariable(local.Name); ok {
		return fmt.Errorf("variable %q already exists in this scope", local.Name)
	}
	s.variables[symbolKey(local.Name)] = localEntry{name: local.Name, local: local}
	return nil
}

func (s *Scope) getFunction(name string) (*ast.Fun, bool) {
	e, ok := s.functions[symbolKey(name)]
	if !ok || e.name != name {
		return nil, false
	}
	return e.fun, true
}

func (s *Scope) getVariable(name string) (*ast.Local, bool) {
	e, ok := s.variables[symbolKey(name)]
	if !ok || e.name != name {
		return nil, false
	}
	return e.local, true
}

// Stack is a stack of Scopes. The most recently entered scope is
// searched first; add* calls operate on that top scope only.
type Stack struct {
	scopes []*Scope
}

func NewStack() *Stack { return &Stack{} }

// ScopeEnter pushes a new, empty scope.
func (st *Stack) ScopeEnter() {
	st.scopes = append(st.scopes, newScope())
}

// ScopeExit pops the top scope. Calling it with nothing entered is a
// logic error in the caller.
func (st *Stack) ScopeExit() {
	if len(st.scopes) == 0 {
		panic("scope: ScopeExit called with no scope entered")
	}
	st.scopes = st.scopes[:len(st.scopes)-1]
}

func (st *Stack) top() (*Scope, error) {
	if len(st.scopes) == 0 {
		return nil, fmt.Errorf("scope: no scope entered")
	}
	return st.scopes[len(st.scopes)-1], nil
}

func (st *Stack) AddVariable(local *ast.Local) error {
	s, err := st.top()
	if err != nil {
		return err
	}
	return s.addVariable(local)
}

func (st *Stack) AddFunction(fun *ast.Fun) error {
	s, err := st.top()
	if err != nil {
		return err
	}
	return s.addFunction(fun)
}

// GetFunction walks scopes from the top down; the first match wins.
func (st *Stack) GetFunction(name string) (*ast.Fun, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if fun, ok := st.scopes[i].getFunction(name); ok {
			return fun, true
		}
	}
	return nil, false
}

// GetVariable walks scopes from the top down; the first match wins.
func (st *Stack) GetVariable(name string) (*ast.Local, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if local, ok := st.scopes[i].getVariable(name); ok {
			return local, true
		}
	}
	return nil, false
}
