// Command seekio reads, hashes and copies the resources named by seekio
// locators: local paths, "-", file:// and data: URIs, and http(s)://,
// ftp://, sftp:// and s3:// URLs.
//
// Usage:
//
//	seekio cat https://example.com/photo.jpg --offset 0 --length 16 | xxd
//	seekio size s3://my-bucket/scans/a.tif -c region=eu-west-1,retries=3
//	seekio sum --hash md5 ftp://ftp.example.com/pub/README
//	seekio cp sftp://user@example.com/data/a.bin ./a.bin -c key_file=~/.ssh/id_ed25519
package main

import (
	"context"
	"os"
	"os/signal"

	_ "github.com/grokify/seekio/backend/file"
	_ "github.com/grokify/seekio/backend/ftp"
	_ "github.com/grokify/seekio/backend/http"
	_ "github.com/grokify/seekio/backend/s3"
	_ "github.com/grokify/seekio/backend/sftp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
