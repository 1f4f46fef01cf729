// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSEmulatorEnv points the client at a fake GCS server without authentication.
const GCSEmulatorEnv = "GCS_EMULATOR_ENDPOINT"

// GCS stores sample files as objects in a Google Cloud Storage bucket.
type GCS struct {
	bucket *storage.BucketHandle
	client *storage.Client
	prefix string
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, errors.NotValidf("empty gcs bucket")
	}
	var opts []option.ClientOption
	if endpoint := os.Getenv(GCSEmulatorEnv); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{
		bucket: client.Bucket(cfg.Bucket),
		client: client,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.bucket.Object(path.Join(g.prefix, name))
}

func (g *GCS) Open(name string) (io.ReadCloser, error) {
	r, err := g.object(name).NewReader(context.Background())
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, errors.NotFoundf("%s", name)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func (g *GCS) Create(name string) (io.WriteCloser, chan error, error) {
	wc := g.object(name).NewWriter(context.Background())
	wc.ContentType = contentType(name)
	done := make(chan error, 1)
	return &gcsWriter{Writer: wc, name: name, done: done}, done, nil
}

// gcsWriter commits the object on Close and sends the result to the done channel.
type gcsWriter struct {
	*storage.Writer
	name string
	done chan error
}

func (w *gcsWriter) Close() error {
	defer close(w.done)
	err := w.Writer.Close()
	if err != nil {
		log.Logger().Error("failed to upload file to GCS", zap.String("file", w.name), zap.Error(err))
		err = errors.Trace(err)
	}
	w.done <- err
	return err
}

func (g *GCS) List() ([]string, error) {
	prefix := g.prefix
	if prefix != "" {
		prefix += "/"
	}
	var names []string
	it := g.bucket.Objects(context.Background(), &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		if name := strings.TrimPrefix(attrs.Name, prefix); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (g *GCS) Remove(name string) error {
	err := g.object(name).Delete(context.Background())
	if errors.Is(err, storage.ErrObjectNotExist) {
		return errors.NotFoundf("%s", name)
	}
	return errors.Trace(err)
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}
