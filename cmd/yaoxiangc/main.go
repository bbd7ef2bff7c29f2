// Command yaoxiangc compiles and runs one or more .yx source files.
// It is the direct descendant of the teacher's (KTStephano-GVM)
// main.go: same os.Args-after-flag.NArg() file-list convention, same
// "print the error and return" failure style, widened to take
// YX_*-prefixed environment overrides via github.com/xyproto/env/v2
// instead of flags alone (spec.md §6.1, §6.5 — a REPL is an external
// collaborator, so this driver only ever runs a batch of files once).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"

	"yaoxiang/bytecode"
	"yaoxiang/compiler"
	"yaoxiang/executor"
	"yaoxiang/ffi"
)

var (
	debugFlag = flag.Bool("debug", false, "generate debug info and enable breakpoint reporting")
	asyncFlag = flag.Bool("async", false, "lex and parse multiple source files concurrently")
)

func main() {
	flag.Parse()
	files := os.Args[len(os.Args)-flag.NArg():]
	if len(files) == 0 {
		fmt.Println("Usage: yaoxiangc [-debug] [-async] <file 1> [file 2] ... [file N]")
		return
	}

	units := make([]compiler.Unit, 0, len(files))
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Println(err)
			return
		}
		units = append(units, compiler.Unit{Name: path, Source: string(src)})
	}

	file, err := compiler.Compile(units, compiler.Options{
		Observer: compiler.NopObserver{},
		Async:    *asyncFlag,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := executor.Config{
		MaxStackDepth:     env.Int("YX_MAX_STACK_DEPTH", 1024),
		GenerateDebugInfo: *debugFlag || env.Bool("YX_DEBUG"),
	}
	exec := executor.WithConfig(cfg)
	exec.SetRegistry(ffi.WithStd())
	exec.SetStdout(os.Stdout)

	mod := &bytecode.BytecodeModule{
		Constants:  file.Constants,
		Types:      file.Types,
		Functions:  file.Functions,
		Globals:    file.Globals,
		EntryIndex: file.EntryIndex,
	}

	// Recovers the way the teacher's main() guards ExecNextInstruction
	// against a panic escaping an unexpected interpreter bug, reporting
	// it instead of crashing the CLI outright.
	defer func() {
		if r := recover(); r != nil {
			fmt.Println("yaoxiangc: internal error:", r)
		}
	}()

	if err := exec.ExecuteModule(mod); err != nil {
		fmt.Println(err)
	}
}
