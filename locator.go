package seekio

import (
	"net/url"
	"strings"
)

// Protocol identifies the kind of resource a locator refers to.
type Protocol string

const (
	LocalFile Protocol = "file"
	HTTP      Protocol = "http"
	HTTPS     Protocol = "https"
	FTP       Protocol = "ftp"
	SFTP      Protocol = "sftp"
	S3        Protocol = "s3"
	FileURI   Protocol = "fileuri"
	DataURI   Protocol = "data"
	Stdin     Protocol = "stdin"
)

// String returns the string representation of the protocol.
func (p Protocol) String() string {
	return string(p)
}

// IsRemote reports whether streams for this protocol go over the network.
func (p Protocol) IsRemote() bool {
	switch p {
	case HTTP, HTTPS, FTP, SFTP, S3:
		return true
	}
	return false
}

var schemePrefixes = []struct {
	prefix   string
	protocol Protocol
}{
	{"http://", HTTP},
	{"https://", HTTPS},
	{"ftp://", FTP},
	{"sftp://", SFTP},
	{"ssh://", SFTP},
	{"s3://", S3},
	{"file://", FileURI},
	{"data:", DataURI},
}

// Classify determines the protocol of a locator. The scheme comparison is
// case-insensitive. "-" means standard input; anything without a known
// scheme is a local file path.
func Classify(locator string) Protocol {
	if locator == "-" {
		return Stdin
	}
	lower := strings.ToLower(locator)
	for _, sp := range schemePrefixes {
		if strings.HasPrefix(lower, sp.prefix) {
			return sp.protocol
		}
	}
	return LocalFile
}

// PathFromFileURI converts a file:// URI to a local path.
// Only empty and "localhost" hosts are accepted.
func PathFromFileURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", NewError("parse", uri, ErrInvalidLocator)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", NewError("parse", uri, ErrInvalidLocator)
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return "", NewError("parse", uri, ErrInvalidLocator)
	}
	if u.Path == "" {
		return "", NewError("parse", uri, ErrInvalidLocator)
	}
	return u.Path, nil
}
