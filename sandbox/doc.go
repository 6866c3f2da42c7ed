// Package sandbox provides constrained execution of untrusted code snippets.
//
// The sandbox package implements the two components of the execution core:
// the Guard, a static pre-execution filter that rejects snippets containing
// denylisted imports, calls, or attribute accesses, and the Runner, which
// executes an approved snippet in a disposable interpreter subprocess with a
// wall-clock deadline.
//
// The Runner never runs unguarded input and never returns an error to its
// caller: every invocation produces a Result value, including on policy
// rejection, timeout, and spawn failure.
//
// Usage:
//
//	runner := sandbox.NewRunner(logger, scratchDir)
//	result := runner.Run(ctx, sandbox.Request{
//	    Code:    "print('Hello, World!')",
//	    Kind:    sandbox.KindPython,
//	    Timeout: 5 * time.Second,
//	})
package sandbox
