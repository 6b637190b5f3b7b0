package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/reqflow/client"
	"github.com/adamwoolhether/reqflow/client/body"
)

// requestFlags are the flags of the commands that send one request.
type requestFlags struct {
	headers     []string
	query       []string
	include     bool
	fail        bool
	raw         bool
	jsonPath    string
	output      string
	data        string
	dataFile    string
	contentType string
	json        bool
	form        []string
}

func (rf *requestFlags) register(cmd *cobra.Command, withBody bool) {
	f := cmd.Flags()
	f.StringArrayVarP(&rf.headers, "header", "H", nil, `Request header as "Name: value", repeatable`)
	f.StringArrayVar(&rf.query, "query", nil, `Query parameter as "key=value", repeatable`)
	f.BoolVarP(&rf.include, "include", "i", false, "Print response headers")
	f.BoolVarP(&rf.fail, "fail", "f", false, "Exit non-zero on a non-2xx status")
	f.BoolVar(&rf.raw, "raw", false, "Print the body without undoing Content-Encoding")
	f.StringVar(&rf.jsonPath, "jq", "", "Print only the value at this gjson path")
	f.StringVarP(&rf.output, "output", "o", "", "Write the body to this file instead of stdout")

	if !withBody {
		return
	}
	f.StringVarP(&rf.data, "data", "d", "", "Request body")
	f.StringVar(&rf.dataFile, "data-file", "", "Upload the content of this file")
	f.StringVar(&rf.contentType, "content-type", "", "Content-Type of the body")
	f.BoolVar(&rf.json, "json", false, "Send the body as application/json")
	f.StringArrayVar(&rf.form, "form", nil, `Form field as "key=value", repeatable`)
	cmd.MarkFlagsMutuallyExclusive("data", "data-file", "form")
}

func newGetCommand(s *settings) *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Send a GET request and print the response",
		Example: `  reqflow get https://example.com
  reqflow get -i https://api.example.com/items --query page=2
  reqflow get https://api.example.com/items --jq items.#.id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, s, &rf, http.MethodGet, args[0])
		},
	}
	rf.register(cmd, false)

	return cmd
}

func newSendCommand(s *settings) *cobra.Command {
	var rf requestFlags

	cmd := &cobra.Command{
		Use:   "send <method> <url>",
		Short: "Send a request with any method and an optional body",
		Example: `  reqflow send POST https://api.example.com/items --json -d '{"name":"gear"}'
  reqflow send PUT https://api.example.com/files/a --data-file ./a.bin
  reqflow send POST https://example.com/login --form user=me --form pass=secret`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, s, &rf, strings.ToUpper(args[0]), args[1])
		},
	}
	rf.register(cmd, true)

	return cmd
}

// requestOptions converts the flags into request options.
func (rf *requestFlags) requestOptions() ([]client.RequestOption, error) {
	var opts []client.RequestOption

	for _, h := range rf.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, exitErr(ExitUsageError, fmt.Errorf("header %q is not \"Name: value\"", h))
		}
		opts = append(opts, client.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	if len(rf.query) > 0 {
		q, err := pairs(rf.query)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithQuery(q...))
	}

	switch {
	case rf.contentType != "":
		opts = append(opts, client.WithContentType(rf.contentType))
	case rf.json:
		opts = append(opts, client.WithContentType("application/json"))
	}

	switch {
	case rf.data != "":
		opts = append(opts, client.WithText(rf.data))
	case rf.dataFile != "":
		opts = append(opts, client.WithFile(rf.dataFile))
	case len(rf.form) > 0:
		form, err := pairs(rf.form)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithForm(form...))
	}

	return opts, nil
}

func pairs(kvs []string) ([]body.Pair, error) {
	out := make([]body.Pair, 0, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, exitErr(ExitUsageError, fmt.Errorf("%q is not \"key=value\"", kv))
		}
		out = append(out, body.Pair{Key: k, Value: v})
	}

	return out, nil
}

func run(cmd *cobra.Command, s *settings, rf *requestFlags, method, target string) error {
	opts, err := rf.requestOptions()
	if err != nil {
		return err
	}

	req, err := client.NewRequest(method, target, opts...)
	if err != nil {
		return err
	}

	c, err := s.newClient(cmd)
	if err != nil {
		return err
	}
	defer c.CloseIdleConnections()

	resp, err := c.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}
	defer resp.Close()

	out := s.console(cmd)
	out.status(resp)
	if rf.include {
		out.headers(resp)
	}

	if rf.fail {
		if err := resp.ExpectSuccess(); err != nil {
			return err
		}
	}

	return writeBody(cmd, resp, rf)
}

func writeBody(cmd *cobra.Command, resp *client.Response, rf *requestFlags) error {
	switch {
	case rf.output != "":
		return resp.ToFile(cmd.Context(), rf.output)

	case rf.jsonPath != "":
		res, err := resp.Query(rf.jsonPath)
		if err != nil {
			return err
		}
		if !res.Exists() {
			return exitErr(ExitBodyError, fmt.Errorf("path %q not found", rf.jsonPath))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.String())
		return err

	case rf.raw:
		b, err := resp.RawBytes()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err

	default:
		rc, err := resp.Reader()
		if err != nil {
			return err
		}
		defer rc.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
			var e *client.Error
			if errors.As(err, &e) {
				return err
			}
			return exitErr(ExitBodyError, fmt.Errorf("writing body: %w", err))
		}
		return nil
	}
}
