package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	t "miniforge/internal/types"
)

var ErrNoDiff = errors.New("deploy: no stored diff for project")

// DiffStore retains structural change sets for later rollback, keyed by
// timestamp per project. Latest returns the most recent stored set.
type DiffStore interface {
	Put(ctx context.Context, projectID string, files []t.ProjectFile) error
	Latest(ctx context.Context, projectID string) ([]t.ProjectFile, time.Time, error)
}

// MemoryDiffStore ------------------------------------------------------------------

type diffEntry struct {
	at    time.Time
	files []t.ProjectFile
}

type MemoryDiffStore struct {
	mu        sync.RWMutex
	byProject map[string][]diffEntry
}

func NewMemoryDiffStore() *MemoryDiffStore {
	return &MemoryDiffStore{byProject: map[string][]diffEntry{}}
}

func (s *MemoryDiffStore) Put(_ context.Context, projectID string, files []t.ProjectFile) error {
	cp := make([]t.ProjectFile, len(files))
	copy(cp, files)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byProject[projectID] = append(s.byProject[projectID], diffEntry{at: time.Now(), files: cp})
	return nil
}

func (s *MemoryDiffStore) Latest(_ context.Context, projectID string) ([]t.ProjectFile, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byProject[projectID]
	if len(entries) == 0 {
		return nil, time.Time{}, ErrNoDiff
	}
	last := entries[len(entries)-1]
	return last.files, last.at, nil
}

// S3DiffStore ---------------------------------------------------------------------

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3DiffStore persists diff sets as one JSON object per change set under
// diffs/{projectID}/{unix-nanos}.json.
type S3DiffStore struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func NewS3DiffStore(cfg S3Config) (*S3DiffStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3DiffStore{client: client, bucket: bucket, region: region}, nil
}

func (s *S3DiffStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3DiffStore) Put(ctx context.Context, projectID string, files []t.ProjectFile) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	payload, err := json.Marshal(files)
	if err != nil {
		return err
	}
	key := diffKey(projectID, time.Now().UnixNano())
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *S3DiffStore) Latest(ctx context.Context, projectID string) ([]t.ProjectFile, time.Time, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, time.Time{}, fmt.Errorf("project id is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, time.Time{}, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := "diffs/" + projectID + "/"
	keys := make([]string, 0, 16)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, time.Time{}, obj.Err
		}
		if obj.Key != "" {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, time.Time{}, ErrNoDiff
	}
	// Keys embed unix nanos, so lexicographic max is the newest set.
	sort.Strings(keys)
	newest := keys[len(keys)-1]

	obj, err := s.client.GetObject(ctx, s.bucket, newest, minio.GetObjectOptions{})
	if err != nil {
		return nil, time.Time{}, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, time.Time{}, err
	}
	var files []t.ProjectFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode stored diff %s: %w", newest, err)
	}
	return files, diffTime(newest, prefix), nil
}

func diffKey(projectID string, nanos int64) string {
	return fmt.Sprintf("diffs/%s/%020d.json", projectID, nanos)
}

func diffTime(key, prefix string) time.Time {
	name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
	nanos, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
