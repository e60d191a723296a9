package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds the connection settings of an S3 disk.
type S3Config struct {
	Bucket   string
	Region   string
	Key      string
	Secret   string
	Endpoint string // leave empty for real AWS
	URL      string
	Timeout  time.Duration
}

// S3Disk is the S3-compatible object storage driver.
// Works with AWS S3, MinIO, DigitalOcean Spaces, Cloudflare R2.
// Directories are zero-byte "prefix/" marker objects plus any prefix that
// has objects under it.
type S3Disk struct {
	client  s3API
	bucket  *string
	name    string
	baseURL string
	timeout time.Duration
}

// s3API is the part of *s3.Client the disk calls.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(context.Context, *s3.CopyObjectInput, ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

func NewS3Disk(cfg S3Config) (*S3Disk, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage/s3: S3_BUCKET is not configured")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Region),
	}

	// Static credentials (required for MinIO / R2 / Spaces)
	if cfg.Key != "" && cfg.Secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, ""),
		))
	}

	awsConf, err := awscfg.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("storage/s3: load config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return newS3Disk(s3.NewFromConfig(awsConf, clientOpts...), cfg.Bucket, baseURL, cfg.Timeout), nil
}

func newS3Disk(client s3API, bucket, baseURL string, timeout time.Duration) *S3Disk {
	return &S3Disk{
		client:  client,
		bucket:  aws.String(bucket),
		name:    bucket,
		baseURL: baseURL,
		timeout: timeout,
	}
}

func (d *S3Disk) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

func s3Err(op, p string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("storage/s3: %s %s: %w", op, p, ErrNotFound)
	}
	return fmt.Errorf("storage/s3: %s %s: %w", op, p, err)
}

// conflict reports a failed If-None-Match precondition.
func conflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func s3Key(p string) *string { return aws.String(Clean(p)) }

// copySource is the URL-encoded "bucket/key" form CopyObject expects. S3
// decodes "+" as a space, so it is escaped as well.
func (d *S3Disk) copySource(src string) *string {
	parts := strings.Split(d.name+"/"+Clean(src), "/")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(url.PathEscape(part), "+", "%2B")
	}
	return aws.String(strings.Join(parts, "/"))
}

func dirPrefix(p string) string {
	p = Clean(p)
	if p == "" {
		return ""
	}
	return p + "/"
}

func (d *S3Disk) Put(p string, content []byte) error {
	return d.PutStream(p, bytes.NewReader(content))
}

// PutStream sends seekable readers as they are and buffers anything else,
// since PutObject needs a known length.
func (d *S3Disk) PutStream(p string, r io.Reader) error {
	return d.put(p, r, false)
}

// PutStreamExclusive sends If-None-Match: *, so S3 refuses to replace an
// existing object. A "p/" directory marker is a different key and is
// checked beforehand.
func (d *S3Disk) PutStreamExclusive(p string, r io.Reader) error {
	if d.DirectoryExists(p) {
		return fmt.Errorf("storage/s3: put %s: %w", p, ErrExists)
	}
	return d.put(p, r, true)
}

func (d *S3Disk) put(p string, r io.Reader, exclusive bool) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("storage/s3: buffer %s: %w", p, err)
		}
		body = bytes.NewReader(data)
	}
	ctx, cancel := d.ctx()
	defer cancel()

	input := &s3.PutObjectInput{Bucket: d.bucket, Key: s3Key(p), Body: body}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		input.ContentType = aws.String(t)
	}
	if exclusive {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := d.client.PutObject(ctx, input); err != nil {
		if exclusive && conflict(err) {
			return fmt.Errorf("storage/s3: put %s: %w", p, ErrExists)
		}
		return fmt.Errorf("storage/s3: put %s: %w", p, err)
	}
	return nil
}

func (d *S3Disk) Get(p string) ([]byte, error) {
	rc, err := d.GetStream(p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// GetStream is not bound by the disk timeout; the body lives as long as the
// caller reads it.
func (d *S3Disk) GetStream(p string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: d.bucket,
		Key:    s3Key(p),
	})
	if err != nil {
		return nil, s3Err("get", p, err)
	}
	return out.Body, nil
}

func (d *S3Disk) GetRange(p string, offset, length int64) (io.ReadCloser, error) {
	out, err := d.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: d.bucket,
		Key:    s3Key(p),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, s3Err("get range", p, err)
	}
	return out.Body, nil
}

func (d *S3Disk) head(p string) (*s3.HeadObjectOutput, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: d.bucket,
		Key:    s3Key(p),
	})
	if err != nil {
		return nil, s3Err("head", p, err)
	}
	return out, nil
}

func (d *S3Disk) Exists(p string) bool {
	if Clean(p) == "" {
		return false
	}
	_, err := d.head(p)
	return err == nil
}

func (d *S3Disk) DirectoryExists(p string) bool {
	pfx := dirPrefix(p)
	if pfx == "" {
		return true
	}
	ctx, cancel := d.ctx()
	defer cancel()
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  d.bucket,
		Prefix:  aws.String(pfx),
		MaxKeys: aws.Int32(1),
	})
	return err == nil && len(out.Contents) > 0
}

func (d *S3Disk) Size(p string) (int64, error) {
	out, err := d.head(p)
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (d *S3Disk) LastModified(p string) (time.Time, error) {
	out, err := d.head(p)
	if err != nil {
		return time.Time{}, err
	}
	return aws.ToTime(out.LastModified), nil
}

func (d *S3Disk) MimeType(p string) (string, error) {
	out, err := d.head(p)
	if err != nil {
		return "", err
	}
	if t := aws.ToString(out.ContentType); t != "" && t != "binary/octet-stream" {
		return t, nil
	}
	return mime.TypeByExtension(path.Ext(p)), nil
}

func (d *S3Disk) URL(p string) string {
	return d.baseURL + "/" + Clean(p)
}

func (d *S3Disk) Delete(p string) error {
	ctx, cancel := d.ctx()
	defer cancel()
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: d.bucket,
		Key:    s3Key(p),
	})
	if err != nil {
		return fmt.Errorf("storage/s3: delete %s: %w", p, err)
	}
	return nil
}

func (d *S3Disk) Copy(src, dst string) error {
	return d.copy(src, dst, false)
}

func (d *S3Disk) copy(src, dst string, exclusive bool) error {
	ctx, cancel := d.ctx()
	defer cancel()
	input := &s3.CopyObjectInput{
		Bucket:     d.bucket,
		CopySource: d.copySource(src),
		Key:        s3Key(dst),
	}
	if exclusive {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := d.client.CopyObject(ctx, input); err != nil {
		if exclusive && conflict(err) {
			return fmt.Errorf("storage/s3: copy %s: %w", dst, ErrExists)
		}
		return s3Err("copy", src, err)
	}
	return nil
}

func (d *S3Disk) Move(src, dst string) error {
	if err := d.Copy(src, dst); err != nil {
		return err
	}
	return d.Delete(src)
}

// MoveExclusive is a conditional copy followed by a delete of src.
func (d *S3Disk) MoveExclusive(src, dst string) error {
	if d.DirectoryExists(dst) {
		return fmt.Errorf("storage/s3: move %s: %w", dst, ErrExists)
	}
	if err := d.copy(src, dst, true); err != nil {
		return err
	}
	if err := d.Delete(src); err != nil {
		if rbErr := d.Delete(dst); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func (d *S3Disk) Files(directory string) ([]string, error) {
	keys, _, err := d.list(directory, "/")
	return keys, err
}

func (d *S3Disk) AllFiles(directory string) ([]string, error) {
	keys, _, err := d.list(directory, "")
	return keys, err
}

func (d *S3Disk) Directories(directory string) ([]string, error) {
	_, dirs, err := d.list(directory, "/")
	return dirs, err
}

// list skips directory markers in the returned keys.
func (d *S3Disk) list(directory, delimiter string) (keys, dirs []string, err error) {
	input := &s3.ListObjectsV2Input{
		Bucket: d.bucket,
		Prefix: aws.String(dirPrefix(directory)),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	ctx, cancel := d.ctx()
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("storage/s3: list %s: %w", directory, err)
		}
		for _, obj := range page.Contents {
			if k := aws.ToString(obj.Key); !strings.HasSuffix(k, "/") {
				keys = append(keys, k)
			}
		}
		for _, cp := range page.CommonPrefixes {
			if pfx := Clean(aws.ToString(cp.Prefix)); pfx != "" {
				dirs = append(dirs, pfx)
			}
		}
	}
	return keys, dirs, nil
}

// MakeDirectory writes a "path/" marker so empty folders survive listing.
func (d *S3Disk) MakeDirectory(p string) error {
	return d.mkdir(p, false)
}

// MakeDirectoryExclusive refuses a prefix that already holds objects or a
// file stored under the bare key, then writes the marker conditionally.
func (d *S3Disk) MakeDirectoryExclusive(p string) error {
	if Clean(p) == "" || d.Exists(p) || d.DirectoryExists(p) {
		return fmt.Errorf("storage/s3: mkdir %s: %w", p, ErrExists)
	}
	return d.mkdir(p, true)
}

func (d *S3Disk) mkdir(p string, exclusive bool) error {
	pfx := dirPrefix(p)
	if pfx == "" {
		return nil
	}
	ctx, cancel := d.ctx()
	defer cancel()
	input := &s3.PutObjectInput{
		Bucket: d.bucket,
		Key:    aws.String(pfx),
		Body:   bytes.NewReader(nil),
	}
	if exclusive {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := d.client.PutObject(ctx, input); err != nil {
		if exclusive && conflict(err) {
			return fmt.Errorf("storage/s3: mkdir %s: %w", p, ErrExists)
		}
		return fmt.Errorf("storage/s3: mkdir %s: %w", p, err)
	}
	return nil
}

// DeleteDirectory removes every object under the prefix, markers included,
// in batches of 1000.
func (d *S3Disk) DeleteDirectory(p string) error {
	pfx := dirPrefix(p)
	if pfx == "" {
		return fmt.Errorf("storage/s3: refusing to delete bucket root")
	}

	ctx, cancel := d.ctx()
	defer cancel()

	var objs []types.ObjectIdentifier
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: d.bucket,
		Prefix: aws.String(pfx),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("storage/s3: list %s: %w", p, err)
		}
		for _, obj := range page.Contents {
			objs = append(objs, types.ObjectIdentifier{Key: obj.Key})
		}
	}

	var failed []string
	for start := 0; start < len(objs); start += 1000 {
		end := min(start+1000, len(objs))
		out, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: d.bucket,
			Delete: &types.Delete{Objects: objs[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("storage/s3: rmdir %s: %w", p, err)
		}
		// A 200 response still carries the keys S3 refused to delete.
		for _, e := range out.Errors {
			failed = append(failed, aws.ToString(e.Key))
		}
	}
	if len(failed) > 0 {
		return &DeleteError{Path: p, Failed: failed}
	}
	return nil
}
