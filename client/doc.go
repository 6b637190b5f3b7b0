// Package client provides the core implementation of the reqflow HTTP
// client built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithMaxRedirects(5),
//	)
//
// A Client is safe for concurrent use and should be reused.
//
// # Making Requests
//
// [NewRequest] validates the target, headers and body up front, so a
// built [Request] can always be sent:
//
//	req, err := client.Post("https://api.example.com/v1/items",
//		client.WithJSON(item),
//		client.WithBearerAuth(token),
//	)
//	resp, err := c.Execute(ctx, req)
//
// Redirects are followed per RFC 9110: 301 and 302 turn a POST into a
// GET, 303 turns anything but GET into a GET, and 307 and 308 resend the
// method and body. Authorization, Cookie and Proxy-Authorization are
// dropped when a redirect crosses to another host or from https to http.
//
// # Reading Responses
//
// A [Response] body can be consumed once, by exactly one of
// [Response.Bytes], [Response.RawBytes], [Response.Text],
// [Response.JSON], [Structured], [Response.Query], [Response.Reader] or
// [Response.ToFile]. Content-Encoding is undone transparently:
//
//	var out Item
//	if err := resp.JSON(&out); err != nil { ... }
//
// Use [Response.Close] to discard a body without reading it.
//
// # Errors
//
// Every failure of the pipeline is an [*Error] carrying an [ErrorKind]
// (builder, connect, transport, redirect, body, decode, timeout) and a
// sentinel that can be tested with [errors.Is]:
//
//	if errors.Is(err, client.ErrTooManyRedirects) { ... }
//
// # Downloading Files
//
// Stream a response body directly to disk with optional checksum
// verification and progress reporting:
//
//	err = c.Download(ctx, req, "/tmp/file.bin",
//		client.WithChecksum(sha256.New(), expectedHex),
//		client.WithProgress(func(n, total int64) { ... }),
//	)
//
// # Async Downloads
//
// A single file can be downloaded asynchronously with [Client.DownloadAsync]:
//
//	r, err := c.DownloadAsync(ctx, req, "/tmp/file.bin")
//	// ... do other work ...
//	if err := r.Err(); err != nil { ... }
//
// For multiple concurrent downloads, use [WithBatch] to set a concurrency
// limit and Add to enqueue additional files:
//
//	r, err := c.DownloadAsync(ctx, req1, "/tmp/a.bin", client.WithBatch(4))
//	r.Add(req2, "/tmp/b.bin")
//	r.Add(req3, "/tmp/c.bin")
//	err = r.Wait() // blocks until all downloads finish
//
// For lower-level control see the
// [github.com/adamwoolhether/reqflow/client/download] package.
package client
