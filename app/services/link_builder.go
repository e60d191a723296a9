package services

import (
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/filemanager/pkg/filemanager"
	"github.com/shashiranjanraj/filemanager/pkg/signedurl"
)

// Gateway query parameter names.
const (
	ParamDisk       = "disk"
	ParamPath       = "path"
	ParamMode       = "mode"
	ParamIdentifier = "identifier"
	ParamFilename   = "filename"
)

// LinkBuilder issues signed gateway links under baseURL/prefix.
type LinkBuilder struct {
	signer  *signedurl.Signer
	baseURL string
	prefix  string
	ttl     time.Duration
}

var _ filemanager.Linker = (*LinkBuilder)(nil)

func NewLinkBuilder(signer *signedurl.Signer, baseURL, prefix string, ttl time.Duration) *LinkBuilder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LinkBuilder{
		signer:  signer,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  strings.Trim(prefix, "/"),
		ttl:     ttl,
	}
}

// TTL is how long issued links stay valid.
func (b *LinkBuilder) TTL() time.Duration { return b.ttl }

func (b *LinkBuilder) StreamURL(t filemanager.StreamTarget) (string, error) {
	return b.build("stream", t)
}

func (b *LinkBuilder) DownloadURL(t filemanager.StreamTarget) (string, error) {
	return b.build("download", t)
}

func (b *LinkBuilder) build(action string, t filemanager.StreamTarget) (string, error) {
	q := url.Values{}
	q.Set(ParamDisk, t.Disk)
	q.Set(ParamPath, t.Path)
	if t.Mode != "" {
		q.Set(ParamMode, t.Mode)
	}
	if t.Identifier != "" {
		q.Set(ParamIdentifier, t.Identifier)
	}
	if t.Filename != "" {
		q.Set(ParamFilename, t.Filename)
	}

	route := "/" + action
	if b.prefix != "" {
		route = "/" + b.prefix + route
	}
	return b.signer.Sign(b.baseURL+route, q, b.ttl)
}
