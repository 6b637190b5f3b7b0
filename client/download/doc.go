// Package download streams response bodies to storage with optional
// checksum validation and progress reporting.
//
// # Single Download
//
// [Handle] copies a body to the destination chunk by chunk, calling every
// [ProgressFunc] after each write:
//
//	err := download.Handle(ctx, body, contentLength, destPath, logger,
//		download.WithProgress(func(n, total int64) { ... }),
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// The destination is created or truncated through a [Storage], [Disk] by
// default. A failed download leaves the partial file in place.
//
// # Batches
//
// A [Queue] runs downloads concurrently up to a limit. [Result.Add]
// enqueues more work into the same batch and [Task.Wait] joins every
// error.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/reqflow/client] package, which invokes
// Handle internally and re-exports the download options.
package download
