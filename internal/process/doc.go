// Package process runs short-lived external commands with a bounded lifetime.
//
// Every invocation:
//   - runs in its own process group, killed as a whole on timeout or cancellation
//   - has stdout and stderr captured (capped in size)
//   - never goes through a shell; arguments are passed verbatim
//   - is optionally serialized with every other invocation of the same Runner
//
// Example usage:
//
//	r := process.NewRunner(process.Config{
//	    Name:      "aprontest",
//	    Binary:    "aprontest",
//	    Timeout:   30 * time.Second,
//	    Serialize: true,
//	})
//
//	res, err := r.Run(ctx, "-l")
//	if errors.Is(err, process.ErrTimeout) {
//	    ...
//	}
package process
