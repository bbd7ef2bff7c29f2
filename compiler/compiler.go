// Package compiler is the front-to-back façade over the lexer,
// parser, type checker, IR generator, and bytecode generator: it is
// the direct descendant of the teacher's (KTStephano-GVM)
// CompileSource/CompileSourceFromBuffer pair, generalized from an
// assembler pass to a full multi-phase pipeline (spec.md §6.2).
package compiler

import (
	"fmt"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"yaoxiang/ast"
	"yaoxiang/bytecode"
	"yaoxiang/ir"
	"yaoxiang/lexer"
	"yaoxiang/parser"
	"yaoxiang/types"
)

// CompilerVersion is compared against a loaded BytecodeFile's Version
// field via golang.org/x/mod/semver the way a package manager checks
// compatibility, instead of hand-rolled version-string parsing
// (spec.md §6.4).
const CompilerVersion = "v0.2.0"

// Phase names an observable pipeline stage (spec.md §6.2 "observer
// events").
type Phase int

const (
	PhaseLexing Phase = iota
	PhaseParsing
	PhaseTypeChecking
	PhaseIRGeneration
	PhaseCodeGeneration
)

func (p Phase) String() string {
	switch p {
	case PhaseLexing:
		return "lexing"
	case PhaseParsing:
		return "parsing"
	case PhaseTypeChecking:
		return "type_checking"
	case PhaseIRGeneration:
		return "ir_generation"
	case PhaseCodeGeneration:
		return "code_generation"
	}
	return "unknown"
}

// Observer receives Start/Complete notifications for every phase, the
// generalized form of the teacher's compileAndCheck test harness print
// statements (spec.md §6.2).
type Observer interface {
	PhaseStart(p Phase, file string)
	PhaseComplete(p Phase, file string, err error)
}

// NopObserver implements Observer with no-ops, the default when a
// caller doesn't care to watch phase transitions.
type NopObserver struct{}

func (NopObserver) PhaseStart(Phase, string)        {}
func (NopObserver) PhaseComplete(Phase, string, error) {}

// Options configures a Compile invocation.
type Options struct {
	Observer Observer
	// Async parses multiple named source units concurrently via
	// errgroup instead of sequentially (spec.md §6.6's module
	// resolution is an external collaborator; this only concerns
	// concurrent lex+parse of files named on one invocation).
	Async bool
}

func DefaultOptions() Options { return Options{Observer: NopObserver{}} }

// Unit is one named source file handed to Compile.
type Unit struct {
	Name   string
	Source string
}

// Compile runs every phase over the given units and returns the
// generated bytecode file, mirroring the teacher's
// CompileSource(debug bool, files ...string) signature widened to
// in-memory sources (spec.md §6.2).
func Compile(units []Unit, opts Options) (*bytecode.BytecodeFile, error) {
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	mods, err := parseUnits(units, opts)
	if err != nil {
		return nil, err
	}

	mod := mergeModules(mods)

	opts.Observer.PhaseStart(PhaseTypeChecking, "")
	res, err := types.Check(mod)
	opts.Observer.PhaseComplete(PhaseTypeChecking, "", err)
	if err != nil {
		return nil, fmt.Errorf("compile: type check: %w", err)
	}

	opts.Observer.PhaseStart(PhaseIRGeneration, "")
	modIR, err := ir.Generate(mod, res)
	opts.Observer.PhaseComplete(PhaseIRGeneration, "", err)
	if err != nil {
		return nil, fmt.Errorf("compile: ir generation: %w", err)
	}

	opts.Observer.PhaseStart(PhaseCodeGeneration, "")
	file := bytecode.Generate(modIR)
	opts.Observer.PhaseComplete(PhaseCodeGeneration, "", nil)

	return file, nil
}

// unitResult pairs a parsed module with its source index so results
// can be reassembled in file order after concurrent parsing.
type unitResult struct {
	mod *ast.Module
	err error
}

func parseUnits(units []Unit, opts Options) ([]*ast.Module, error) {
	results := make([]unitResult, len(units))

	if opts.Async && len(units) > 1 {
		var g errgroup.Group
		for i := range units {
			i := i
			g.Go(func() error {
				mod, err := lexAndParse(units[i], opts)
				results[i] = unitResult{mod: mod, err: err}
				return nil // errors surface per-unit below, not via errgroup's fail-fast
			})
		}
		_ = g.Wait()
	} else {
		for i := range units {
			mod, err := lexAndParse(units[i], opts)
			results[i] = unitResult{mod: mod, err: err}
		}
	}

	mods := make([]*ast.Module, len(units))
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("compile: %s: %w", units[i].Name, r.err)
		}
		mods[i] = r.mod
	}
	return mods, nil
}

func lexAndParse(u Unit, opts Options) (*ast.Module, error) {
	opts.Observer.PhaseStart(PhaseLexing, u.Name)
	toks, err := lexer.Tokenize(u.Name, u.Source)
	opts.Observer.PhaseComplete(PhaseLexing, u.Name, err)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}

	opts.Observer.PhaseStart(PhaseParsing, u.Name)
	mod, err := parser.ParseTokens(toks)
	opts.Observer.PhaseComplete(PhaseParsing, u.Name, err)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return mod, nil
}

// mergeModules concatenates every unit's top-level statements into one
// module in file order; cross-file `use` resolution stays an external
// collaborator (spec.md §6.6), so this is a flat append, not a linker.
func mergeModules(mods []*ast.Module) *ast.Module {
	if len(mods) == 1 {
		return mods[0]
	}
	merged := &ast.Module{}
	for _, m := range mods {
		merged.Stmts = append(merged.Stmts, m.Stmts...)
	}
	return merged
}

// CheckVersionCompatible reports whether a loaded module's recorded
// compiler version is a semver-compatible match for CompilerVersion
// (same major version), per spec.md §6.4's "validate a loaded module
// was produced by a compatible compiler revision".
func CheckVersionCompatible(loaded string) bool {
	if !semver.IsValid(loaded) || !semver.IsValid(CompilerVersion) {
		return false
	}
	return semver.Major(loaded) == semver.Major(CompilerVersion)
}
