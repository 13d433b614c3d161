// Package pool provides a dynamic pool of reusable child-process executors.
//
// A caller hands in a Submission: an ordered sequence of Commands, each a
// single stdin instruction plus the predicates that decide, line by line,
// when the process has finished responding on stdout and stderr. The pool
// picks a free executor, streams the instructions into the child's standard
// input, feeds its output lines through the predicates, and returns a Future
// the caller can wait on or cancel.
//
// The pool grows and shrinks between a configured minimum and maximum,
// keeping a reserve of idle executors warm to hide spawn latency:
//   - On submit with no idle executor and room below the maximum, a new
//     executor is started.
//   - Executors above the minimum retire after sitting idle for the
//     keep-alive interval, as long as the reserve stays intact.
//
// Child processes are supplied by a ProcessManager, one per executor, which
// may also provide startup and termination submissions and recycle processes
// by execution count or age. CommandManager is a ready-made implementation
// spawning a shell-style command string.
//
// Example usage:
//
//	manager, _ := pool.NewCommandManager("my-worker --stdin")
//	p, err := pool.New(manager.Factory(), pool.Config{
//	    MinSize:     2,
//	    MaxSize:     8,
//	    ReserveSize: 1,
//	    KeepAlive:   time.Minute,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown()
//
//	sub := pool.NewSubmission(
//	    pool.NewCommand("process job-42", pool.LineEquals("done"), nil),
//	)
//	f, err := p.Submit(sub)
//	if err != nil {
//	    return err
//	}
//	result, err := f.Get()
package pool
