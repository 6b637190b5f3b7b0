package cli

import (
	"crypto/sha256"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/reqflow/client"
)

func newDownloadCommand(s *settings) *cobra.Command {
	var (
		headers      []string
		checksum     string
		progress     bool
		skipExisting bool
		dir          string
		batch        int
	)

	cmd := &cobra.Command{
		Use:   "download <url>...",
		Short: "Stream one or more responses to files",
		Long: `Download streams each response body to disk, undoing any
Content-Encoding on the way. Each file is named after the last path
segment of its URL and saved under --dir.`,
		Example: `  reqflow download https://go.dev/dl/go1.24.0.src.tar.gz --sha256 <hex>
  reqflow download -C ./out --batch 4 https://example.com/a.bin https://example.com/b.bin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if checksum != "" && len(args) > 1 {
				return exitErr(ExitUsageError, fmt.Errorf("--sha256 applies to a single download"))
			}

			rf := requestFlags{headers: headers}
			reqOpts, err := rf.requestOptions()
			if err != nil {
				return err
			}

			var opts []client.DownloadOption
			if checksum != "" {
				opts = append(opts, client.WithChecksum(sha256.New(), checksum))
			}
			if progress {
				opts = append(opts, client.WithProgressLog())
			}
			if skipExisting {
				opts = append(opts, client.WithSkipExisting())
			}

			c, err := s.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.CloseIdleConnections()

			out := s.console(cmd)

			reqs := make([]*client.Request, len(args))
			for i, target := range args {
				req, err := client.Get(target, reqOpts...)
				if err != nil {
					return err
				}
				reqs[i] = req
			}

			first := filepath.Join(dir, destName(reqs[0]))
			res, err := c.DownloadAsync(cmd.Context(), reqs[0], first, append(opts, client.WithBatch(batch))...)
			if err != nil {
				return err
			}
			for _, req := range reqs[1:] {
				res.Add(req, filepath.Join(dir, destName(req)), opts...)
			}

			if err := res.Wait(); err != nil {
				return err
			}

			for _, req := range reqs {
				fmt.Fprintf(out.w, "saved %s\n", filepath.Join(dir, destName(req)))
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&headers, "header", "H", nil, `Request header as "Name: value", repeatable`)
	f.StringVar(&checksum, "sha256", "", "Expected hex SHA-256 of the file")
	f.BoolVar(&progress, "progress", false, "Log download progress")
	f.BoolVar(&skipExisting, "skip-existing", false, "Skip files that already exist")
	f.StringVarP(&dir, "dir", "C", ".", "Directory to save into")
	f.IntVar(&batch, "batch", 4, "Maximum concurrent downloads, 0 for unlimited")

	return cmd
}

// destName picks the file name for a download from its URL.
func destName(req *client.Request) string {
	name := path.Base(req.URL().Path)
	if name == "." || name == "/" || name == "" {
		return "index.html"
	}

	return name
}
