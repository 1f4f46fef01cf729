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
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/config"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	writeTries    = 3
	writeInterval = 100 * time.Millisecond
)

// Store is a flat namespace of files.
type Store interface {
	// Open a file for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a file for writing. The done channel yields the result of persisting the content
	// once the writer is closed.
	Create(name string) (io.WriteCloser, chan error, error)
	// List names of all files.
	List() ([]string, error)
	// Remove a file.
	Remove(name string) error
}

// NewStore creates a store from a URI. Supported schemes are s3, gs and azblob; anything
// else is a local directory.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if cfg.URI == "" {
		return nil, errors.NotValidf("empty storage uri")
	}
	u, err := url.Parse(cfg.URI)
	if err == nil && u.Scheme == "file" {
		return NewPOSIX(u.Host + u.Path), nil
	}
	if err != nil || u.Host == "" {
		return NewPOSIX(cfg.URI), nil
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "s3":
		s3 := cfg.S3
		s3.Bucket, s3.Prefix = u.Host, prefix
		return NewS3(s3)
	case "gs":
		gcs := cfg.GCS
		gcs.Bucket, gcs.Prefix = u.Host, prefix
		return NewGCS(gcs)
	case "azblob":
		return NewAzureBlob(cfg.Azure, u.Host, prefix)
	default:
		return nil, errors.NotSupportedf("storage scheme %q", u.Scheme)
	}
}

// ReadAll reads a whole file from a store.
func ReadAll(store Store, name string) ([]byte, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", name)
	}
	return data, nil
}

// Write streams a file into a store and waits until it is persisted. The file is written
// again from scratch if an attempt fails, so write must be repeatable.
func Write(store Store, name string, write func(w io.Writer) error) error {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = writeInterval
	attempt := 0
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		attempt++
		err := writeOnce(store, name, write)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, errors.NotValid) || errors.Is(err, errors.NotSupported) {
			return struct{}{}, backoff.Permanent(err)
		}
		if attempt < writeTries {
			log.Logger().Warn("retry writing file", zap.String("name", name), zap.Int("attempt", attempt), zap.Error(err))
		}
		return struct{}{}, err
	}, backoff.WithBackOff(retry), backoff.WithMaxTries(writeTries))
	return err
}

func writeOnce(store Store, name string, write func(w io.Writer) error) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Annotatef(err, "create %s", name)
	}
	if err = write(w); err != nil {
		if pw, ok := w.(*io.PipeWriter); ok {
			_ = pw.CloseWithError(err)
		} else {
			_ = w.Close()
		}
		<-done
		return errors.Annotatef(err, "write %s", name)
	}
	if err = w.Close(); err != nil {
		<-done
		return errors.Annotatef(err, "close %s", name)
	}
	if err = <-done; err != nil {
		return errors.Annotatef(err, "upload %s", name)
	}
	return nil
}

// upload streams the content written to the returned pipe into fn. The result of fn is sent
// to the done channel, which is closed afterwards.
func upload(fn func(r io.Reader) error) (*io.PipeWriter, chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := fn(pr)
		// unblock the writer if fn stopped reading early
		_ = pr.CloseWithError(err)
		done <- err
	}()
	return pw, done
}

var contentTypes = map[string]string{
	".ddm":  "application/octet-stream",
	".csv":  "text/csv",
	".yaml": "application/yaml",
	".mtx":  "text/plain",
	".png":  "image/png",
	".svg":  "image/svg+xml",
}

// contentType guesses the MIME type of a file written by the sampler.
func contentType(name string) string {
	if t, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}
