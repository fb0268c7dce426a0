/*
Copyright (C) 2026  The GoatDB Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 layout:
//  - one object per log file under <prefix>/<path>
//  - directories only exist implicitly through key prefixes
//
// S3 does not support positional writes; each open file buffers the whole
// object in memory with a userspace cursor and replaces the object on flush.

type S3Config struct {
	AccessKeyID     string // AWS or S3-compatible access key
	SecretAccessKey string // AWS or S3-compatible secret key
	Region          string // AWS region (e.g., "us-east-1")
	Endpoint        string // Custom endpoint for S3-compatible storage (MinIO, etc.)
	Bucket          string // S3 bucket name
	Prefix          string // Object key prefix
	ForcePathStyle  bool   // Use path-style URLs (required for MinIO)
}

type S3Backend struct {
	cfg    S3Config
	prefix string

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func NewS3(cfg S3Config) *S3Backend {
	return &S3Backend{cfg: cfg, prefix: strings.TrimSuffix(cfg.Prefix, "/")}
}

func (b *S3Backend) ensureOpen() (*s3.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return b.client, nil
	}

	ctx := context.Background()

	var opts []func(*config.LoadOptions) error
	if b.cfg.Region != "" {
		opts = append(opts, config.WithRegion(b.cfg.Region))
	}
	if b.cfg.AccessKeyID != "" && b.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				b.cfg.AccessKeyID,
				b.cfg.SecretAccessKey,
				"", // session token
			),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if b.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(b.cfg.Endpoint)
		})
	}
	if b.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	b.client = s3.NewFromConfig(cfg, s3Opts...)
	b.opened = true
	return b.client, nil
}

func (b *S3Backend) key(path string) string {
	path = strings.TrimPrefix(sandboxClean(path), "/")
	if b.prefix == "" {
		return path
	}
	return b.prefix + "/" + path
}

func (b *S3Backend) download(path string) ([]byte, error) {
	client, err := b.ensureOpen()
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *S3Backend) upload(path string, data []byte) error {
	client, err := b.ensureOpen()
	if err != nil {
		return err
	}
	_, err = client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(data),
	})
	return err
}

type s3File struct {
	b      *S3Backend
	path   string
	data   []byte
	pos    int64
	write  bool
	dirty  bool
	closed bool
}

func (b *S3Backend) Open(path string, write bool) (File, error) {
	data, err := b.download(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if !write {
			return nil, os.ErrNotExist
		}
		data = nil
	}
	return &s3File{b: b, path: path, data: data, write: write}, nil
}

func (f *s3File) Seek(offset int64, whence Whence) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = f.pos
	case SeekEnd:
		base = int64(len(f.data))
	}
	pos := base + offset
	if pos < 0 {
		return 0, ErrNegativeOffset
	}
	f.pos = pos
	return pos, nil
}

func (f *s3File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *s3File) Write(p []byte) error {
	if f.closed {
		return ErrClosed
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	f.dirty = true
	return nil
}

func (f *s3File) Truncate(size int64) error {
	if f.closed {
		return ErrClosed
	}
	if size < 0 {
		size = 0
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}
	f.dirty = true
	return nil
}

func (f *s3File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.dirty {
		return nil
	}
	if err := f.b.upload(f.path, f.data); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

func (f *s3File) Close() error {
	if f.closed {
		return nil
	}
	err := f.Flush()
	f.closed = true
	f.data = nil
	return err
}

func (b *S3Backend) Remove(path string) bool {
	client, err := b.ensureOpen()
	if err != nil {
		return false
	}
	if !b.Exists(path) {
		return false
	}
	_, err = client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	return err == nil
}

func (b *S3Backend) Mkdir(path string) bool {
	// keys are flat; prefixes spring into existence with their objects
	return true
}

func (b *S3Backend) Exists(path string) bool {
	client, err := b.ensureOpen()
	if err != nil {
		return false
	}
	_, err = client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(path)),
	})
	if err == nil {
		return true
	}
	// a prefix with objects below it counts as a directory
	entries, derr := b.ReadDir(path)
	return derr == nil && len(entries) > 0
}

func (b *S3Backend) CopyFile(src string, dst string) error {
	client, err := b.ensureOpen()
	if err != nil {
		return err
	}
	_, err = client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String(b.cfg.Bucket),
		CopySource: aws.String(b.cfg.Bucket + "/" + b.key(src)),
		Key:        aws.String(b.key(dst)),
	})
	return err
}

func (b *S3Backend) ReadDir(path string) ([]DirEntry, error) {
	client, err := b.ensureOpen()
	if err != nil {
		return nil, err
	}
	prefix := b.key(path)
	if prefix != "" {
		prefix += "/"
	}
	var result []DirEntry
	var token *string
	for {
		out, err := client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.cfg.Bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			result = append(result, DirEntry{Name: name, IsDirectory: true})
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" {
				continue
			}
			result = append(result, DirEntry{Name: name, IsFile: true})
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return result, nil
}

func (b *S3Backend) CWD() string {
	return "/"
}

func (b *S3Backend) TempDir() string {
	return "/tmp"
}
