package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/metrics"
	"liontech/storage"
)

const (
	prefix    = "backups/"
	keyLayout = "20060102-150405.000"
	// keys written before millisecond precision
	legacyLayout = "20060102-150405"
)

// ErrInvalidKey rejects keys outside the backup folder.
var ErrInvalidKey = errors.New("invalid backup key")

// Info describes a stored backup file.
type Info struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	CreatedAt time.Time `json:"createdAt"`
}

// Runner stores backups in object storage.
type Runner struct {
	db    *sqlx.DB
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewRunner(db *sqlx.DB, store storage.Store, log *zap.Logger) *Runner {
	return &Runner{db: db, store: store, log: log, now: time.Now}
}

// Key returns the storage key for a backup taken at t. The random suffix
// keeps two backups taken in the same millisecond apart.
func Key(t time.Time) string {
	return prefix + "liontech-" + t.UTC().Format(keyLayout) + "-" + uuid.NewString()[:8] + ".json"
}

// CheckKey cleans key and ensures it names a backup file.
func CheckKey(key string) (string, error) {
	k, err := storage.CleanKey(key)
	if err != nil || !strings.HasPrefix(k, prefix) || !strings.HasSuffix(k, ".json") {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return k, nil
}

// Create exports the database and stores it.
func (r *Runner) Create(ctx context.Context) (Info, error) {
	info, err := r.create(ctx)
	if err != nil {
		metrics.Backups.WithLabelValues("error").Inc()
		r.log.Error("backup failed", zap.Error(err))
		return Info{}, err
	}
	metrics.Backups.WithLabelValues("ok").Inc()
	r.log.Info("backup stored", zap.String("key", info.Key), zap.String("size", info.SizeHuman))
	return info, nil
}

func (r *Runner) create(ctx context.Context) (Info, error) {
	doc, err := Export(ctx, r.db)
	if err != nil {
		return Info{}, err
	}
	doc.CreatedAt = r.now().UTC()
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return Info{}, fmt.Errorf("encode backup: %w", err)
	}
	size := int64(buf.Len())
	key := Key(doc.CreatedAt)
	if err := r.store.Put(ctx, key, "application/json", &buf); err != nil {
		return Info{}, fmt.Errorf("store backup: %w", err)
	}
	return r.info(storage.Object{Key: key, Size: size, LastModified: doc.CreatedAt}), nil
}

func (r *Runner) info(o storage.Object) Info {
	created := o.LastModified
	name := strings.TrimSuffix(strings.TrimPrefix(o.Key, prefix+"liontech-"), ".json")
	if len(name) >= len(keyLayout) {
		if t, err := time.Parse(keyLayout, name[:len(keyLayout)]); err == nil {
			created = t
		}
	}
	if t, err := time.Parse(legacyLayout, name); err == nil {
		created = t
	}
	return Info{
		Key:       o.Key,
		Size:      o.Size,
		SizeHuman: humanize.Bytes(uint64(o.Size)),
		CreatedAt: created,
	}
}

// List returns the stored backups, newest first.
func (r *Runner) List(ctx context.Context) ([]Info, error) {
	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := make([]Info, 0, len(objects))
	for _, o := range objects {
		if !strings.HasSuffix(o.Key, ".json") {
			continue
		}
		out = append(out, r.info(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key > out[j].Key
	})
	return out, nil
}

// Prune deletes all but the newest keep backups. keep <= 0 keeps all.
func (r *Runner) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, b := range list[min(keep, len(list)):] {
		if err := r.store.Delete(ctx, b.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return deleted, fmt.Errorf("prune %s: %w", b.Key, err)
		}
		deleted = append(deleted, b.Key)
	}
	if len(deleted) > 0 {
		r.log.Info("old backups removed", zap.Strings("keys", deleted))
	}
	return deleted, nil
}

// Open returns the stored file for key.
func (r *Runner) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := CheckKey(key)
	if err != nil {
		return nil, err
	}
	return r.store.Open(ctx, k)
}

// Delete removes the stored file for key.
func (r *Runner) Delete(ctx context.Context, key string) error {
	k, err := CheckKey(key)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, k)
}

// RestoreKey restores the stored backup at key.
func (r *Runner) RestoreKey(ctx context.Context, key string) (*Document, error) {
	rc, err := r.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return r.RestoreFrom(ctx, rc)
}

// RestoreFrom decodes and restores a backup document.
func (r *Runner) RestoreFrom(ctx context.Context, src io.Reader) (*Document, error) {
	doc, err := Decode(src)
	if err != nil {
		return nil, err
	}
	if err := Restore(ctx, r.db, doc); err != nil {
		return nil, err
	}
	r.log.Warn("database restored from backup", zap.Time("createdAt", doc.CreatedAt), zap.Int("rows", doc.Rows()))
	return doc, nil
}
