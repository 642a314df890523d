package livestream

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"streamcast/internal/metadata"
)

const storeTimeout = 2 * time.Second

// SessionState tracks the lifecycle of a stream session. Each state is
// visited at most once.
type SessionState int32

const (
	StateStarting SessionState = iota
	StateRelaying
	StateDraining
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRelaying:
		return "relaying"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Conn is the inbound producer connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	Close() error
}

// ArtifactPublisher uploads artifacts to object storage. Implemented by
// storage.Publisher.
type ArtifactPublisher interface {
	Publish(streamID, filename, localPath string, done func(error))
	PlaylistURL(streamID string) string
}

// Session owns everything belonging to one live stream: the transcoder
// process, the segment watcher, the output directory, and the stream's
// metadata record. It relays inbound media chunks to the transcoder and
// publishes every artifact the transcoder produces.
type Session struct {
	streamID   string
	outputDir  string
	transcoder Transcoder
	store      metadata.Service
	publisher  ArtifactPublisher
	drainGrace time.Duration

	watcher *SegmentWatcher

	state         atomic.Int32
	urlPublished  atomic.Bool
	terminated    chan struct{}
	terminateOnce sync.Once
}

// NewSession binds one stream identifier to its collaborators. Run does the
// actual work.
func NewSession(streamID, outputDir string, tc Transcoder, store metadata.Service, pub ArtifactPublisher, drainGrace time.Duration) *Session {
	return &Session{
		streamID:   streamID,
		outputDir:  outputDir,
		transcoder: tc,
		store:      store,
		publisher:  pub,
		drainGrace: drainGrace,
		terminated: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
	log.Printf("Session[%s]: %s", s.streamID, state)
}

// Run drives the session through its whole lifecycle and returns once it is
// terminated. It never panics on collaborator failures; a broken session
// must not take the gateway down with it.
func (s *Session) Run(conn Conn) {
	defer s.terminate()

	if err := s.start(); err != nil {
		log.Printf("Session[%s]: start failed: %v", s.streamID, err)
		return
	}

	eventsDone := make(chan struct{})
	go s.eventLoop(conn, eventsDone)

	s.setState(StateRelaying)
	s.readPump(conn)

	s.setState(StateDraining)
	s.transcoder.Close()

	// Give the transcoder a bounded window to flush trailing segments; the
	// watcher keeps running so those flush events still reach the publisher.
	select {
	case <-s.transcoder.Done():
	case <-time.After(s.drainGrace):
		log.Printf("Session[%s]: drain grace elapsed before transcoder exit", s.streamID)
	}

	s.watcher.Stop()
	<-eventsDone
}

func (s *Session) start() error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return err
	}
	if err := s.transcoder.Start(s.outputDir); err != nil {
		return err
	}

	watcher, err := NewSegmentWatcher(s.outputDir)
	if err != nil {
		s.transcoder.Close()
		return err
	}
	s.watcher = watcher

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Seed(ctx, s.streamID); err != nil {
		// Metadata is best-effort for a session; the stream itself keeps going.
		log.Printf("Session[%s]: metadata seed failed: %v", s.streamID, err)
	}

	return nil
}

// readPump forwards inbound chunks to the transcoder in arrival order until
// the connection closes or errors.
func (s *Session) readPump(conn Conn) {
	for {
		_, chunk, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Session[%s]: producer connection closed: %v", s.streamID, err)
			return
		}
		if err := s.transcoder.Write(chunk); err != nil {
			log.Printf("Session[%s]: transcoder write: %v", s.streamID, err)
		}
		go s.bumpViewers()
	}
}

// eventLoop publishes artifacts as the watcher reports them and reacts to
// the transcoder exiting. It ends when the watcher is stopped.
func (s *Session) eventLoop(conn Conn, done chan<- struct{}) {
	defer close(done)

	transcoderDone := s.transcoder.Done()
	for {
		select {
		case name, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.publishArtifact(name)
		case <-transcoderDone:
			transcoderDone = nil
			if s.State() == StateRelaying {
				log.Printf("Session[%s]: transcoder exited unexpectedly: %v", s.streamID, s.transcoder.Err())
				// Ending the connection unwinds the session through the
				// normal draining path.
				conn.Close()
			}
		}
	}
}

func (s *Session) publishArtifact(name string) {
	localPath := filepath.Join(s.outputDir, name)
	s.publisher.Publish(s.streamID, name, localPath, func(err error) {
		if err != nil {
			return
		}
		s.onUploaded()
	})
}

// onUploaded runs on the first successful upload of any artifact and makes
// the stream discoverable by writing its playlist URL. Late completions
// arriving after teardown must not revive the record.
func (s *Session) onUploaded() {
	select {
	case <-s.terminated:
		return
	default:
	}

	if !s.urlPublished.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.SetURL(ctx, s.streamID, s.publisher.PlaylistURL(s.streamID)); err != nil {
		log.Printf("Session[%s]: publishing playlist url failed: %v", s.streamID, err)
		s.urlPublished.Store(false)
	}
}

func (s *Session) bumpViewers() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.IncrementViewers(ctx, s.streamID); err != nil {
		log.Printf("Session[%s]: viewer increment dropped: %v", s.streamID, err)
	}
}

// terminate releases every resource the session owns. Failures are logged
// and never propagate; cleanup of one resource does not abort cleanup of the
// rest.
func (s *Session) terminate() {
	s.terminateOnce.Do(func() {
		s.setState(StateTerminated)
		close(s.terminated)

		if s.watcher != nil {
			s.watcher.Stop()
		}

		s.transcoder.Close()
		select {
		case <-s.transcoder.Done():
		default:
			s.transcoder.Kill()
		}

		if err := os.RemoveAll(s.outputDir); err != nil {
			log.Printf("Session[%s]: removing output dir: %v", s.streamID, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.ResetViewers(ctx, s.streamID); err != nil {
			log.Printf("Session[%s]: terminal viewer reset failed: %v", s.streamID, err)
		}
	})
}
