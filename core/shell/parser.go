// Package shell turns command-line text into pipelines ready to launch.
package shell

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/pgsh/core/jobs"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Stage is one command of a pipeline after expansion.
type Stage struct {
	Args      []string
	Redirects []jobs.Redirect
}

// Name is the command being run.
func (s Stage) Name() string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}

// Pipeline is a fully expanded job description.
type Pipeline struct {
	Stages     []Stage
	Background bool
	Text       string
}

// Statement is a parsed but not yet expanded pipeline. Expansion is deferred
// so each statement of a list sees the effects of the ones before it.
type Statement struct {
	Background bool
	Text       string

	stages []*syntax.Stmt
}

// UnsupportedError reports valid shell syntax that is outside what this shell
// runs.
type UnsupportedError struct {
	Pos  syntax.Pos
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Pos, e.What)
}

func unsupported(node syntax.Node, what string) error {
	return &UnsupportedError{Pos: node.Pos(), What: what}
}

// Parse splits src into statements. Only simple commands joined by pipes,
// optionally followed by &, and separated by newlines or ; are accepted.
func Parse(src string) ([]Statement, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		return nil, err
	}

	var out []Statement
	for _, stmt := range file.Stmts {
		st, err := newStatement(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func newStatement(stmt *syntax.Stmt) (Statement, error) {
	switch {
	case stmt.Negated:
		return Statement{}, unsupported(stmt, "!")
	case stmt.Coprocess:
		return Statement{}, unsupported(stmt, "coproc")
	}
	if _, ok := stmt.Cmd.(*syntax.BinaryCmd); ok && len(stmt.Redirs) > 0 {
		return Statement{}, unsupported(stmt, "redirecting a whole pipeline")
	}

	var stages []*syntax.Stmt
	if err := flatten(stmt, &stages); err != nil {
		return Statement{}, err
	}
	for _, stage := range stages {
		if err := checkStage(stage); err != nil {
			return Statement{}, err
		}
	}

	return Statement{
		Background: stmt.Background,
		Text:       display(stmt),
		stages:     stages,
	}, nil
}

// flatten collects the stages of a pipe tree from left to right.
func flatten(stmt *syntax.Stmt, out *[]*syntax.Stmt) error {
	bin, ok := stmt.Cmd.(*syntax.BinaryCmd)
	if !ok {
		*out = append(*out, stmt)
		return nil
	}
	if bin.Op != syntax.Pipe {
		return unsupported(bin, bin.Op.String())
	}
	if err := flatten(bin.X, out); err != nil {
		return err
	}
	return flatten(bin.Y, out)
}

func checkStage(stmt *syntax.Stmt) error {
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok {
		if stmt.Cmd == nil {
			return unsupported(stmt, "redirection without a command")
		}
		return unsupported(stmt, "compound command")
	}
	if len(call.Assigns) > 0 {
		return unsupported(call, "variable assignment")
	}
	for _, r := range stmt.Redirs {
		switch r.Op {
		case syntax.Hdoc, syntax.DashHdoc, syntax.WordHdoc:
			return unsupported(r, "here-document")
		case syntax.RdrInOut:
			return unsupported(r, "<>")
		}
	}
	return nil
}

// display prints stmt the way a user would type it, without a trailing &.
func display(stmt *syntax.Stmt) string {
	clone := *stmt
	clone.Background = false
	buf := &bytes.Buffer{}
	if err := syntax.NewPrinter().Print(buf, &clone); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

// Config creates an expansion context over env that also globs against the
// working directory.
func Config(env expand.Environ) *expand.Config {
	return &expand.Config{
		Env:      env,
		ReadDir2: os.ReadDir,
	}
}

// Expand performs parameter, tilde, and glob expansion on the statement's
// words.
func (st Statement) Expand(cfg *expand.Config) (Pipeline, error) {
	pl := Pipeline{
		Background: st.Background,
		Text:       st.Text,
	}
	for _, stmt := range st.stages {
		call := stmt.Cmd.(*syntax.CallExpr)
		args, err := expand.Fields(cfg, call.Args...)
		if err != nil {
			return Pipeline{}, err
		}
		if len(args) == 0 {
			return Pipeline{}, fmt.Errorf("%s: empty command", stmt.Pos())
		}

		var redirects []jobs.Redirect
		for _, r := range stmt.Redirs {
			rs, err := expandRedirect(cfg, r)
			if err != nil {
				return Pipeline{}, err
			}
			redirects = append(redirects, rs...)
		}
		pl.Stages = append(pl.Stages, Stage{Args: args, Redirects: redirects})
	}
	return pl, nil
}

func expandRedirect(cfg *expand.Config, r *syntax.Redirect) ([]jobs.Redirect, error) {
	word, err := expand.Literal(cfg, r.Word)
	if err != nil {
		return nil, err
	}

	fd := 1
	switch r.Op {
	case syntax.RdrIn, syntax.DplIn:
		fd = 0
	}
	if r.N != nil {
		if fd, err = strconv.Atoi(r.N.Value); err != nil {
			return nil, fmt.Errorf("%s: bad file descriptor %q", r.Pos(), r.N.Value)
		}
	}

	switch r.Op {
	case syntax.RdrIn:
		return []jobs.Redirect{{FD: fd, Kind: jobs.RedirectInput, Filename: word}}, nil
	case syntax.RdrOut, syntax.ClbOut:
		return []jobs.Redirect{{FD: fd, Kind: jobs.RedirectOutput, Filename: word}}, nil
	case syntax.AppOut:
		return []jobs.Redirect{{FD: fd, Kind: jobs.RedirectAppend, Filename: word}}, nil
	case syntax.DplIn, syntax.DplOut:
		src, err := strconv.Atoi(word)
		if err != nil {
			return nil, unsupported(r, fmt.Sprintf("%s%s", r.Op, word))
		}
		return []jobs.Redirect{{FD: fd, Kind: jobs.RedirectDup, SourceFD: src}}, nil
	case syntax.RdrAll:
		return []jobs.Redirect{
			{FD: 1, Kind: jobs.RedirectOutput, Filename: word},
			{FD: 2, Kind: jobs.RedirectDup, SourceFD: 1},
		}, nil
	case syntax.AppAll:
		return []jobs.Redirect{
			{FD: 1, Kind: jobs.RedirectAppend, Filename: word},
			{FD: 2, Kind: jobs.RedirectDup, SourceFD: 1},
		}, nil
	default:
		return nil, unsupported(r, r.Op.String())
	}
}
