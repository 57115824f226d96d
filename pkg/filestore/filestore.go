// Package filestore keeps exported task files in a local directory, a S3
// bucket or a telegram chat.
package filestore

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/igolaizola/tunepoll/pkg/filestore/local"
	"github.com/igolaizola/tunepoll/pkg/filestore/s3"
	"github.com/igolaizola/tunepoll/pkg/filestore/tgstore"
	"github.com/igolaizola/tunepoll/pkg/storage"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	Download(ctx context.Context, path, name string) error
}

type Store struct {
	fs fs
	// files is nil without a database.
	files *storage.Store
	// track is set for backends that don't record their own file refs.
	track bool
}

// Put stores the local file at path as the given file of a task.
func (s *Store) Put(ctx context.Context, path, taskID, file string) error {
	name := Name(taskID, file)
	if err := s.fs.Upload(ctx, path, name); err != nil {
		return err
	}
	if s.files != nil && s.track {
		if err := s.files.SetFileRef(ctx, name, ""); err != nil {
			return fmt.Errorf("filestore: %w", err)
		}
	}
	return nil
}

// Stored returns the files of a task already in the store. It is always
// empty without a database.
func (s *Store) Stored(ctx context.Context, taskID string) (map[string]bool, error) {
	stored := map[string]bool{}
	if s.files == nil {
		return stored, nil
	}
	prefix := taskID + "/"
	vs, err := s.files.ListFiles(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	for _, v := range vs {
		stored[strings.TrimPrefix(v.ID, prefix)] = true
	}
	return stored, nil
}

// Get retrieves a task file into the local path.
func (s *Store) Get(ctx context.Context, path, taskID, file string) error {
	return s.fs.Download(ctx, path, Name(taskID, file))
}

// New creates a file store. Connection strings are a directory for local,
// key:secret@bucket.region[@endpoint] for s3 and token@chat for telegram.
func New(ctx context.Context, typ, conn, proxy string, debug bool, store *storage.Store) (*Store, error) {
	var fs fs
	switch typ {
	case "telegram":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid telegram connection string %q", conn)
		}
		token := split[0]
		chat, err := strconv.ParseInt(split[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("filestore: invalid telegram chat id %q: %w", split[1], err)
		}
		if store == nil {
			return nil, fmt.Errorf("filestore: telegram file storage needs a database")
		}
		candidate, err := tgstore.New(ctx, &tgstore.Config{Token: token, Chat: chat, Proxy: proxy, Debug: debug}, store)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "s3":
		cfg, err := parseS3(conn)
		if err != nil {
			return nil, err
		}
		cfg.Debug = debug
		candidate, err := s3.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		fs = local.New(conn, debug)
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{
		fs:    fs,
		files: store,
		track: typ != "telegram",
	}, nil
}

// parseS3 reads key:secret@bucket.region, optionally followed by
// @endpoint for S3 compatible providers.
func parseS3(conn string) (*s3.Config, error) {
	split := strings.SplitN(conn, "@", 3)
	if len(split) < 2 {
		return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
	}
	auth := strings.SplitN(split[0], ":", 2)
	if len(auth) != 2 {
		return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
	}
	bucket, region, ok := strings.Cut(split[1], ".")
	if !ok || bucket == "" || region == "" {
		return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
	}
	cfg := &s3.Config{
		Key:    auth[0],
		Secret: auth[1],
		Bucket: bucket,
		Region: region,
	}
	if len(split) == 3 {
		endpoint := split[2]
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		cfg.Endpoint = endpoint
	}
	return cfg, nil
}

// Name is the stored name of a task file.
func Name(taskID, file string) string {
	return path.Join(taskID, file)
}
