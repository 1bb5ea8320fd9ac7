package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one invocation seen by a Fake runner.
type Call struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the call the way it would appear on a shell command line.
func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Fake is an in-memory Runner for tests. Commands succeed unless an error or
// output is stubbed for their command line.
type Fake struct {
	mu sync.Mutex

	calls   []Call
	errs    map[string]error
	outputs map[string]string
}

// NewFake creates a new Fake runner
func NewFake() *Fake {
	return &Fake{
		errs:    make(map[string]error),
		outputs: make(map[string]string),
	}
}

// FailWith makes every invocation matching cmdline fail with err.
func (f *Fake) FailWith(cmdline string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[cmdline] = err
}

// RespondWith sets the stdout returned for invocations matching cmdline.
func (f *Fake) RespondWith(cmdline string, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[cmdline] = output
}

// Calls returns every recorded invocation in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallLines returns the recorded invocations as shell-style command lines.
func (f *Fake) CallLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

func (f *Fake) record(c Cmd) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Name: c.Name, Args: c.Args, Dir: c.Dir, Env: c.Env}
	f.calls = append(f.calls, call)

	line := call.String()
	if err, ok := f.errs[line]; ok {
		return "", err
	}
	return f.outputs[line], nil
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, c Cmd) error {
	out, err := f.record(c)
	if err != nil {
		return err
	}
	if c.Stdout != nil && out != "" {
		if _, werr := fmt.Fprint(c.Stdout, out); werr != nil {
			return werr
		}
	}
	return nil
}

// Output implements Runner.
func (f *Fake) Output(ctx context.Context, c Cmd) (string, error) {
	return f.record(c)
}
