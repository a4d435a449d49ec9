package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/grokify/seekio"
	"github.com/grokify/seekio/backend/file"
)

type rootFlags struct {
	config    map[string]string
	blockSize int
	verbose   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "seekio",
		Short:        "Random access to local and remote files",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringToStringVarP(&flags.config, "config", "c", nil, "Protocol configuration as key=value pairs")
	cmd.PersistentFlags().IntVar(&flags.blockSize, "block-size", 0, "Block size for remote streams (default 1024)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log protocol activity to stderr")

	cmd.AddCommand(
		newCatCmd(flags),
		newSizeCmd(flags),
		newSumCmd(flags),
		newCpCmd(flags),
	)
	return cmd
}

func (f *rootFlags) options(cmd *cobra.Command) []seekio.Option {
	opts := []seekio.Option{seekio.WithContext(cmd.Context())}
	if f.verbose {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, seekio.WithLogger(slog.New(handler)))
	}
	if f.blockSize > 0 {
		opts = append(opts, seekio.WithBlockSize(f.blockSize))
	}
	return opts
}

// create returns an unopened stream for locator.
func (f *rootFlags) create(cmd *cobra.Command, locator string) (seekio.Stream, error) {
	return seekio.Open(locator, f.config, f.options(cmd)...)
}

// open returns an opened stream for locator.
func (f *rootFlags) open(cmd *cobra.Command, locator string) (seekio.Stream, error) {
	s, err := f.create(cmd, locator)
	if err != nil {
		return nil, err
	}
	if err := s.Open(); err != nil {
		_ = s.Release()
		return nil, err
	}
	return s, nil
}

func newCatCmd(flags *rootFlags) *cobra.Command {
	var offset, length int64

	cmd := &cobra.Command{
		Use:   "cat LOCATOR",
		Short: "Write the content of a resource to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = s.Release() }()

			if _, err := seekio.SeekOrError(s, offset, io.SeekStart); err != nil {
				return err
			}
			if length < 0 {
				_, err = seekio.CopyFrom(cmd.OutOrStdout(), s)
				return err
			}
			data, err := seekio.ReadOrError(s, int(length))
			if _, werr := cmd.OutOrStdout().Write(data); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start at")
	cmd.Flags().Int64Var(&length, "length", -1, "Number of bytes to write (default to the end)")
	return cmd
}

func newSizeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "size LOCATOR",
		Short: "Print the size of a resource in bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = s.Release() }()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), s.Size())
			return err
		},
	}
}

func newSumCmd(flags *rootFlags) *cobra.Command {
	var hashName string

	cmd := &cobra.Command{
		Use:   "sum LOCATOR...",
		Short: "Print content hashes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := seekio.HashType(hashName)
			if seekio.NewHash(t) == nil {
				return fmt.Errorf("unsupported hash %q (want one of %v)", hashName, seekio.SupportedHashes())
			}
			for _, locator := range args {
				sum, err := hashLocator(cmd, flags, locator, t)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, locator); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hashName, "hash", string(seekio.HashSHA256), "Hash algorithm")
	return cmd
}

func hashLocator(cmd *cobra.Command, flags *rootFlags, locator string, t seekio.HashType) (string, error) {
	s, err := flags.open(cmd, locator)
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Release() }()
	return seekio.HashStream(s, t)
}

func newCpCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cp SRC DST",
		Short: "Replace the content of DST with the content of SRC",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := flags.open(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = src.Release() }()

			dst, err := flags.create(cmd, args[1])
			if err != nil {
				return err
			}
			defer func() { _ = dst.Release() }()

			return copyStream(dst, src)
		},
	}
}

// copyStream writes src into dst. A local destination is written in
// place so a local source is never renamed away, as Transfer would do.
func copyStream(dst, src seekio.Stream) error {
	fs, ok := dst.(*file.Stream)
	if !ok {
		return dst.Transfer(src)
	}
	if err := fs.OpenMode("w+b"); err != nil {
		return err
	}
	if _, err := fs.WriteFrom(src); err != nil {
		_ = fs.Close()
		return seekio.NewError("copy", fs.Path(), err)
	}
	return fs.Close()
}
