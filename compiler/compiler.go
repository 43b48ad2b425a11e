// Package compiler turns module sources into a test plan. A source is a YAML
// document declaring one module: its address, genesis storage and functions
// written in bytecode assembly. Functions marked as tests become the plan's
// test cases, in file order and then declaration order.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-unittest/bytecode"
	"github.com/ethereum-optimism/infra/op-unittest/types"
)

// LanguageVersion is the newest language version this compiler accepts
const LanguageVersion = "v1.0.0"

// Source is one module source
type Source struct {
	Path    string
	Content []byte
}

// Compile reads and compiles the given source files
func Compile(paths []string) (*types.TestPlan, error) {
	sources := make([]Source, 0, len(paths))
	var diags Errors
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			diags = append(diags, Diagnostic{File: path, Msg: err.Error()})
			continue
		}
		sources = append(sources, Source{Path: path, Content: content})
	}
	if len(diags) > 0 {
		return nil, diags
	}
	return CompileSources(sources)
}

// CompileSources compiles in-memory sources. On failure the returned error
// is an Errors value holding every diagnostic found.
func CompileSources(sources []Source) (*types.TestPlan, error) {
	c := &compilation{
		prog:  bytecode.NewProgram(),
		files: make(map[string]string, len(sources)),
	}

	var parsed []*parsedSource
	for _, src := range sources {
		c.files[src.Path] = string(src.Content)
		if p := c.parse(src); p != nil {
			parsed = append(parsed, p)
		}
	}
	if len(c.diags) > 0 {
		return nil, c.diags
	}

	if err := bytecode.Link(c.prog); err != nil {
		c.linkErrors(err)
		return nil, c.diags
	}

	tests := c.collectTests(parsed)
	if len(c.diags) > 0 {
		return nil, c.diags
	}
	return types.NewTestPlan(c.prog, tests, c.files), nil
}

type parsedSource struct {
	path   string
	module *bytecode.Module
	src    *sourceFile
}

type compilation struct {
	prog  *bytecode.Program
	files map[string]string
	diags Errors
}

func (c *compilation) errorf(d Diagnostic, format string, args ...any) {
	d.Msg = fmt.Sprintf(format, args...)
	c.diags = append(c.diags, d)
}

func (c *compilation) parse(s Source) *parsedSource {
	at := Diagnostic{File: s.Path}

	var src sourceFile
	dec := yaml.NewDecoder(bytes.NewReader(s.Content))
	dec.KnownFields(true)
	if err := dec.Decode(&src); err != nil {
		if errors.Is(err, io.EOF) {
			c.errorf(at, "source is empty")
		} else {
			c.errorf(at, "%v", err)
		}
		return nil
	}

	if src.Address == nil {
		c.errorf(at, "missing module address")
		return nil
	}
	if !validName(src.Module) {
		c.errorf(at, "invalid module name %q", src.Module)
		return nil
	}
	at.Module = src.Module
	if !c.checkVersion(at, src.Version) {
		return nil
	}

	m := bytecode.NewModule(bytecode.ModuleID{Address: src.Address.Address, Name: src.Module})
	m.Source = s.Path
	for key, v := range src.Storage {
		if !validName(key) {
			c.errorf(at, "invalid storage key %q", key)
			continue
		}
		m.Storage[key] = v.Int
	}

	for _, f := range src.Functions {
		fn := c.function(at, f)
		if fn == nil {
			continue
		}
		if _, dup := m.Functions[fn.Name]; dup {
			at := at
			at.Function = fn.Name
			c.errorf(at, "function is defined more than once")
			continue
		}
		m.Functions[fn.Name] = fn
	}

	if err := c.prog.Add(m); err != nil {
		c.errorf(at, "%v", err)
		return nil
	}
	return &parsedSource{path: s.Path, module: m, src: &src}
}

func (c *compilation) checkVersion(at Diagnostic, version string) bool {
	if version == "" {
		return true
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		c.errorf(at, "invalid language version %q", version)
		return false
	}
	if semver.Compare(v, LanguageVersion) > 0 {
		c.errorf(at, "module requires language version %s, newest supported is %s", semver.Canonical(v), LanguageVersion)
		return false
	}
	return true
}

func (c *compilation) function(at Diagnostic, f *sourceFunction) *bytecode.Function {
	if !validName(f.Name) {
		c.errorf(at, "invalid function name %q", f.Name)
		return nil
	}
	at.Function = f.Name

	if f.Params < 0 || f.Returns < 0 || f.Locals < 0 {
		c.errorf(at, "params, locals and returns must not be negative")
		return nil
	}
	locals := f.Locals
	if locals == 0 {
		locals = f.Params
	}
	if locals < f.Params {
		c.errorf(at, "%d locals cannot hold %d parameters", locals, f.Params)
		return nil
	}
	if !f.Test && (len(f.Args) > 0 || f.ExpectedFailure != nil) {
		c.errorf(at, "args and expected_failure are only allowed on tests")
		return nil
	}

	code, err := bytecode.Assemble(f.Code)
	if err != nil {
		var asmErr *bytecode.AssemblyError
		if errors.As(err, &asmErr) {
			at.Line = asmErr.Line
			c.errorf(at, "%s", asmErr.Msg)
		} else {
			c.errorf(at, "%v", err)
		}
		return nil
	}

	return &bytecode.Function{
		Name:    f.Name,
		Params:  f.Params,
		Locals:  locals,
		Returns: f.Returns,
		Code:    code,
	}
}

// linkErrors attributes link and verification failures to their source files
func (c *compilation) linkErrors(err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		c.diags = append(c.diags, Diagnostic{File: c.fileOf(e), Msg: e.Error()})
	}
}

func (c *compilation) fileOf(err error) string {
	msg := err.Error()
	for _, m := range c.prog.Modules() {
		if strings.HasPrefix(msg, m.ID.String()+"::") {
			return m.Source
		}
	}
	return ""
}

func (c *compilation) collectTests(parsed []*parsedSource) []*types.TestCase {
	var tests []*types.TestCase
	seen := make(map[string]string)

	for _, p := range parsed {
		for _, f := range p.src.Functions {
			if !f.Test {
				continue
			}
			at := Diagnostic{File: p.path, Module: p.module.ID.Name, Function: f.Name}
			if len(f.Args) != f.Params {
				c.errorf(at, "test takes %d parameters but %d arguments are given", f.Params, len(f.Args))
				continue
			}

			tc := &types.TestCase{
				Module:   p.module.ID,
				Function: f.Name,
				Args:     words(f.Args),
				File:     p.path,
			}
			if f.ExpectedFailure != nil {
				tc.ExpectedFailure = &types.ExpectedFailure{AbortCode: f.ExpectedFailure.AbortCode}
			}

			name := tc.QualifiedName()
			if prev, dup := seen[name]; dup {
				c.errorf(at, "test name %s is already used in %s", name, prev)
				continue
			}
			seen[name] = p.path
			tests = append(tests, tc)
		}
	}
	return tests
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
