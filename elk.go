// Package elk is the execution engine of the elk shell language: it takes
// the expression tree an external parser produced, analyses it, lowers it
// to bytecode pages, and executes the pages on a stack-based virtual
// machine that splices external processes into expression evaluation.
package elk

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bramadityaw/elk/analyzer"
	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/bytecode"
	"github.com/bramadityaw/elk/compiler"
	"github.com/bramadityaw/elk/process"
	"github.com/bramadityaw/elk/runtime"
	"github.com/bramadityaw/elk/script"
	"github.com/bramadityaw/elk/std"
	"github.com/bramadityaw/elk/vm"
)

// Parser is the external collaborator producing expression trees.
type Parser interface {
	Parse(name, source string) (*ast.Module, error)
}

// Session owns the root module scope, the function table, the page store
// and the executor. Scopes and pages persist for the session lifetime, so
// interactive inputs build on each other.
type Session struct {
	log      *zap.Logger
	bindings *std.Registry
	env      *process.Env
	stdout   io.Writer
	stderr   io.Writer

	rootScope *ast.ModuleScope
	topScope  *ast.LocalScope

	analyzer *analyzer.Analyzer
	compiler *compiler.Compiler
	table    *bytecode.FunctionTable
	vm       *vm.VM

	loader   *script.Loader
	detector *script.Detector
	parser   Parser
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the structured logger, zap.NewNop by default.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithBindings replaces the standard bindings table.
func WithBindings(bindings *std.Registry) Option {
	return func(s *Session) { s.bindings = bindings }
}

// WithStdout sets the writer root pipeline output streams to.
func WithStdout(w io.Writer) Option {
	return func(s *Session) { s.stdout = w }
}

// WithStderr sets the writer child stderr passes through to.
func WithStderr(w io.Writer) Option {
	return func(s *Session) { s.stderr = w }
}

// WithEnv sets the shell environment surface.
func WithEnv(env *process.Env) Option {
	return func(s *Session) { s.env = env }
}

// WithParser sets the external parser used by RunFile.
func WithParser(p Parser) Option {
	return func(s *Session) { s.parser = p }
}

// WithScriptPath records the directory of the executing script, exposed
// through the scriptPath built-in.
func WithScriptPath(dir string) Option {
	return func(s *Session) { s.env.SetScriptPath(dir) }
}

// NewSession creates an execution session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		log:      zap.NewNop(),
		bindings: std.Default(),
		env:      process.NewEnv(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		loader:   script.NewLoader(),
		detector: script.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rootScope = ast.NewModuleScope("", nil)
	s.topScope = ast.NewLocalScope(ast.ScopeBlock, s.rootScope)
	s.analyzer = analyzer.New(s.bindings)
	s.table = bytecode.NewFunctionTable()
	s.compiler = compiler.New(s.table, s.log)
	s.vm = vm.New(s.table, s.bindings,
		vm.WithLogger(s.log),
		vm.WithStdout(s.stdout),
		vm.WithStderr(s.stderr),
		vm.WithEnv(s.env),
	)
	return s
}

// Env exposes the shell environment surface, including `?`.
func (s *Session) Env() *process.Env { return s.env }

// RootScope exposes the persistent root module scope for parsers that
// pre-register declarations and imports.
func (s *Session) RootScope() *ast.ModuleScope { return s.rootScope }

// Execute analyses, compiles and runs one module tree, returning the value
// of its last expression. Failures come back as diagnostics carrying the
// position of the last-visited expression.
func (s *Session) Execute(module *ast.Module) (runtime.Value, error) {
	if module.Scope == nil {
		module.Scope = s.rootScope
	}
	if module.TopScope == nil && module.Scope == s.rootScope {
		module.TopScope = s.topScope
	}

	analysis, err := s.analyzer.Analyze(module)
	if err != nil {
		return nil, s.diagnose(err, s.analyzer.LastPosition())
	}
	page, err := s.compiler.Compile(module, analysis)
	if err != nil {
		return nil, s.diagnose(err, s.analyzer.LastPosition())
	}
	result, err := s.vm.Execute(page)
	if err != nil {
		return nil, s.diagnose(err, module.Pos())
	}
	return result, nil
}

// RunFile loads, parses and executes a script file. The script's
// directory becomes the scriptPath, and the detected project root is
// logged for tooling.
func (s *Session) RunFile(ctx context.Context, path string) (runtime.Value, error) {
	if s.parser == nil {
		return nil, errors.New("no parser configured")
	}
	source, err := s.loader.Load(ctx, path)
	if err != nil {
		return nil, &Diagnostic{Kind: runtime.ErrNotFound, Message: path + " not found"}
	}
	dir := filepath.Dir(path)
	s.env.SetScriptPath(dir)
	if root, err := s.detector.DetectRoot(path); err == nil {
		s.log.Debug("script root detected", zap.String("root", root))
	}
	module, err := s.parser.Parse(filepath.Base(path), source)
	if err != nil {
		return nil, err
	}
	return s.Execute(module)
}

// diagnose packages an engine failure into a positioned diagnostic.
func (s *Session) diagnose(err error, pos ast.Position) error {
	var rerr *runtime.Error
	if errors.As(err, &rerr) {
		return &Diagnostic{Kind: rerr.Kind(), Message: rerr.Message, Position: pos}
	}
	return &Diagnostic{Kind: runtime.ErrRuntime, Message: err.Error(), Position: pos}
}
