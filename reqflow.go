// Package reqflow exposes the client builder.
package reqflow

import (
	"github.com/adamwoolhether/reqflow/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// Unset options keep the defaults documented in [client].
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
