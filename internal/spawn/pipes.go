package spawn

import (
	"fmt"
	"os"

	"github.com/mwri/forkcoupled/internal/errors"
)

// Pipes holds the three pipe pairs backing a child's standard streams.
// Naming is from the child's point of view: the child reads In and writes
// Out and Err.
type Pipes struct {
	InR  *os.File // child stdin, read end (child side)
	InW  *os.File // child stdin, write end (parent side)
	OutR *os.File // child stdout, read end (parent side)
	OutW *os.File // child stdout, write end (child side)
	ErrR *os.File // child stderr, read end (parent side)
	ErrW *os.File // child stderr, write end (child side)
}

// NewPipes creates the three pipes. On any failure the pipes created so far
// are closed and a *PipeError is returned.
func NewPipes() (*Pipes, error) {
	p := &Pipes{}

	var err error

	if p.InR, p.InW, err = os.Pipe(); err != nil {
		return nil, &errors.PipeError{Err: fmt.Errorf("stdin: %w", err)}
	}

	if p.OutR, p.OutW, err = os.Pipe(); err != nil {
		p.CloseAll()

		return nil, &errors.PipeError{Err: fmt.Errorf("stdout: %w", err)}
	}

	if p.ErrR, p.ErrW, err = os.Pipe(); err != nil {
		p.CloseAll()

		return nil, &errors.PipeError{Err: fmt.Errorf("stderr: %w", err)}
	}

	return p, nil
}

// ChildEnds returns the child-side ends in stdio order (fd 0, 1, 2).
func (p *Pipes) ChildEnds() []*os.File {
	return []*os.File{p.InR, p.OutW, p.ErrW}
}

// CloseChildEnds closes the child-side ends. The parent calls this once the
// child owns its copies (or never will).
func (p *Pipes) CloseChildEnds() {
	closeFiles(p.InR, p.OutW, p.ErrW)
}

// CloseParentEnds closes the parent-side ends.
func (p *Pipes) CloseParentEnds() {
	closeFiles(p.InW, p.OutR, p.ErrR)
}

// CloseAll closes every end that is still open.
func (p *Pipes) CloseAll() {
	p.CloseChildEnds()
	p.CloseParentEnds()
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
