package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"streamcast/internal/config"
)

const uploadTimeout = 30 * time.Second

// Uploader is the subset of the S3 client the publisher needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads stream artifacts to object storage. Uploads for different
// artifacts run concurrently; uploads for the same (streamID, filename) are
// serialized so the last content observed on disk is what lands in storage.
type Publisher struct {
	uploader Uploader
	bucket   string
	baseURL  string

	mu       sync.Mutex
	inflight map[string]*uploadSlot
}

// uploadSlot tracks one in-flight artifact. dirty means the file changed
// again while an upload was running and must be re-read and re-uploaded.
type uploadSlot struct {
	dirty bool
}

// NewPublisher creates a Publisher backed by uploader.
func NewPublisher(uploader Uploader, cfg config.StorageConfig) *Publisher {
	return &Publisher{
		uploader: uploader,
		bucket:   cfg.Bucket,
		baseURL:  PublicBaseURL(cfg),
		inflight: make(map[string]*uploadSlot),
	}
}

// Publish schedules an asynchronous upload of localPath to
// hls/{streamID}/{filename}. done, if non-nil, is invoked with the outcome of
// every settled attempt. A failed upload is logged and dropped; the next
// watcher event for the file supersedes it.
func (p *Publisher) Publish(streamID, filename, localPath string, done func(error)) {
	key := streamID + "/" + filename

	p.mu.Lock()
	if slot, ok := p.inflight[key]; ok {
		slot.dirty = true
		p.mu.Unlock()
		return
	}
	slot := &uploadSlot{}
	p.inflight[key] = slot
	p.mu.Unlock()

	go p.run(key, streamID, filename, localPath, slot, done)
}

func (p *Publisher) run(key, streamID, filename, localPath string, slot *uploadSlot, done func(error)) {
	for {
		err := p.upload(streamID, filename, localPath)
		if err != nil {
			log.Printf("Publisher: upload failed for %s: %v", key, err)
		} else {
			log.Printf("Publisher: uploaded %s", key)
		}
		if done != nil {
			done(err)
		}

		p.mu.Lock()
		if slot.dirty {
			slot.dirty = false
			p.mu.Unlock()
			continue
		}
		delete(p.inflight, key)
		p.mu.Unlock()
		return
	}
}

func (p *Publisher) upload(streamID, filename, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "open artifact")
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	_, err = p.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(ObjectKey(streamID, filename)),
		Body:        file,
		ContentType: aws.String(contentTypeFor(filename)),
	})
	return err
}

// PlaylistURL returns the public URL of the stream's playlist object.
func (p *Publisher) PlaylistURL(streamID string) string {
	return fmt.Sprintf("%s/%s", p.baseURL, ObjectKey(streamID, "stream.m3u8"))
}

// ObjectKey returns the storage key for an artifact.
func ObjectKey(streamID, filename string) string {
	return "hls/" + streamID + "/" + filename
}

func contentTypeFor(filename string) string {
	if filepath.Ext(filename) == ".m3u8" {
		return "application/vnd.apple.mpegurl"
	}
	return "video/mp2t"
}
