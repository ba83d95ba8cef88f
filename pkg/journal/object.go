package journal

import (
	"bytes"
	"context"
	"sync"

	"github.com/minio/minio-go/v7"

	archive "github.com/StricklySoft/stricklysoft-apitest/pkg/clients/minio"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// ContentTypeJSONL is the content type of archived journals.
const ContentTypeJSONL = "application/x-ndjson"

// ObjectStore is the part of the MinIO client the archive sink uses.
// *minio.Client from pkg/clients/minio satisfies it.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (minio.UploadInfo, error)
}

var _ ObjectStore = (*archive.Client)(nil)

// ObjectJournal buffers entries as JSON lines and uploads the whole
// buffer to runs/<run>/journal.jsonl on every Flush. Repeated flushes
// overwrite the object with the longer buffer.
type ObjectJournal struct {
	store  ObjectStore
	bucket string
	object string

	mu      sync.Mutex
	buf     bytes.Buffer
	dirty   bool
	ensured bool
}

// NewObjectJournal returns an ObjectJournal writing to bucket.
func NewObjectJournal(store ObjectStore, bucket, runID string) *ObjectJournal {
	return &ObjectJournal{store: store, bucket: bucket, object: ObjectName(runID)}
}

// ObjectName returns the object key of runID's journal.
func ObjectName(runID string) string {
	return "runs/" + runID + "/journal.jsonl"
}

func (j *ObjectJournal) Record(_ context.Context, e Entry) error {
	line, err := marshalLine(e)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "journal: cannot encode entry")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf.Write(line)
	j.dirty = true
	return nil
}

// Flush uploads the buffer when anything was recorded since the last
// successful flush.
func (j *ObjectJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.dirty {
		return nil
	}
	if !j.ensured {
		if err := j.store.EnsureBucket(ctx, j.bucket); err != nil {
			return err
		}
		j.ensured = true
	}
	if _, err := j.store.Upload(ctx, j.bucket, j.object, j.buf.Bytes(), ContentTypeJSONL); err != nil {
		return err
	}
	j.dirty = false
	return nil
}
