package bytecode

import "github.com/bramadityaw/elk/ast"

// FunctionTable retains the emitted page of every user function so that
// call sites resolve to pages. Pages persist once emitted.
type FunctionTable struct {
	pages map[*ast.FunctionSymbol]*Page
}

// NewFunctionTable creates an empty table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{pages: map[*ast.FunctionSymbol]*Page{}}
}

// Bind associates a function symbol with its page.
func (t *FunctionTable) Bind(sym *ast.FunctionSymbol, page *Page) {
	t.pages[sym] = page
}

// Page resolves the page of a function symbol.
func (t *FunctionTable) Page(sym *ast.FunctionSymbol) (*Page, bool) {
	page, ok := t.pages[sym]
	return page, ok
}

// Contains reports whether the symbol already has a page.
func (t *FunctionTable) Contains(sym *ast.FunctionSymbol) bool {
	_, ok := t.pages[sym]
	return ok
}
