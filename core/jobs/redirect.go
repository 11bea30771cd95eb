package jobs

import (
	"fmt"
	"os"
)

// RedirectKind is the operator of an I/O redirection.
type RedirectKind int

const (
	// RedirectInput opens Filename for reading (<).
	RedirectInput RedirectKind = iota
	// RedirectOutput truncates or creates Filename (>).
	RedirectOutput
	// RedirectAppend appends to Filename (>>).
	RedirectAppend
	// RedirectDup makes FD a copy of SourceFD (>&, <&).
	RedirectDup
)

func (k RedirectKind) String() string {
	switch k {
	case RedirectInput:
		return "<"
	case RedirectOutput:
		return ">"
	case RedirectAppend:
		return ">>"
	case RedirectDup:
		return ">&"
	default:
		return "?"
	}
}

// Redirect rebinds descriptor FD of a single stage.
type Redirect struct {
	FD       int
	Kind     RedirectKind
	Filename string
	SourceFD int
}

func (r Redirect) String() string {
	if r.Kind == RedirectDup {
		return fmt.Sprintf("%d%s%d", r.FD, r.Kind, r.SourceFD)
	}
	return fmt.Sprintf("%d%s%s", r.FD, r.Kind, r.Filename)
}

// applyRedirects builds a stage's descriptor table from the descriptors the
// job handed it. Files opened here are closed by the returned func once the
// stage holds its own copies.
func applyRedirects(stdio Stdio, redirects []Redirect) ([]*os.File, func(), error) {
	files := []*os.File{stdio.Stdin, stdio.Stdout, stdio.Stderr}
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, r := range redirects {
		if r.FD < 0 {
			closeAll()
			return nil, nil, fmt.Errorf("%d: bad file descriptor", r.FD)
		}
		for len(files) <= r.FD {
			files = append(files, nil)
		}

		var (
			f   *os.File
			err error
		)
		switch r.Kind {
		case RedirectInput:
			f, err = os.Open(r.Filename)
		case RedirectOutput:
			f, err = os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		case RedirectAppend:
			f, err = os.OpenFile(r.Filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		case RedirectDup:
			if r.SourceFD < 0 || r.SourceFD >= len(files) || files[r.SourceFD] == nil {
				closeAll()
				return nil, nil, fmt.Errorf("%d: bad file descriptor", r.SourceFD)
			}
			files[r.FD] = files[r.SourceFD]
			continue
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unsupported redirection %v", r.Kind)
		}
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		files[r.FD] = f
	}

	return files, closeAll, nil
}
