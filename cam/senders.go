/*
DESCRIPTION
  senders.go provides the destinations used to record captured frames: a
  pool buffered frame sender feeding an output routine, and a disk space
  aware file sender.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package cam

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
)

// Frame sender pool parameters.
const (
	framePoolElements    = 8
	framePoolWriteWait   = 10 * time.Millisecond
	framePoolReadTimeout = 1 * time.Second
)

// Disk space that must remain free for the file sender to keep writing.
const diskSpaceBuffer = 50000000 // 50MB.

var errNoFrameData = errors.New("empty frame")

// fileSender implements io.WriteCloser, appending data to a single file that
// is created on first write.
type fileSender struct {
	file *os.File
	path string
	log  logging.Logger
}

// newFileSender returns a new fileSender writing to path.
func newFileSender(l logging.Logger, path string) *fileSender {
	return &fileSender{path: path, log: l}
}

// Write implements io.Writer.
func (s *fileSender) Write(d []byte) (int, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs("/", &stat); err != nil {
		return 0, fmt.Errorf("could not read system disk space, abandoning write: %w", err)
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < diskSpaceBuffer {
		return 0, fmt.Errorf("reached limit of disk space with a buffer of %v bytes, abandoning write", diskSpaceBuffer)
	}

	if s.file == nil {
		s.log.Debug(pkg+"creating recording file", "path", s.path)
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("could not create file to record frames to: %w", err)
		}
		s.file = f
	}
	return s.file.Write(d)
}

// Close implements io.Closer.
func (s *fileSender) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// frameSender implements io.WriteCloser. Writes copy a whole frame into a
// pool buffer and return immediately; an output routine drains the pool to
// dst so that a slow destination never stalls the capture loop. Frames that
// do not fit are dropped and counted.
type frameSender struct {
	dst     io.WriteCloser
	pool    *pool.Buffer
	log     logging.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	sent    int
	dropped int
}

// newFrameSender returns a frameSender for frames of frameSize bytes and
// starts its output routine.
func newFrameSender(dst io.WriteCloser, l logging.Logger, frameSize int) *frameSender {
	l.Debug(pkg+"setting up frame sender", "frameSize", frameSize)
	pool.MaxAlloc(frameSize)
	s := &frameSender{
		dst:  dst,
		pool: pool.NewBuffer(framePoolElements, frameSize, framePoolWriteWait),
		log:  l,
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.output()
	return s
}

// output drains the pool to the destination until Close is called.
func (s *frameSender) output() {
	defer s.wg.Done()
	var chunk *pool.Chunk
	for {
		select {
		case <-s.done:
			s.log.Info(pkg + "terminating frame sender output routine")
			return
		default:
			if chunk == nil {
				var err error
				chunk, err = s.pool.Next(framePoolReadTimeout)
				switch err {
				case nil:
				case io.EOF, pool.ErrTimeout:
					continue
				default:
					s.log.Error(pkg+"unexpected pool error", "error", err.Error())
					continue
				}
			}
			_, err := s.dst.Write(chunk.Bytes())
			if err != nil {
				s.log.Warning(pkg+"frame write failed", "error", err.Error())
			} else {
				s.mu.Lock()
				s.sent++
				s.mu.Unlock()
			}
			chunk.Close()
			chunk = nil
		}
	}
}

// Write implements io.Writer.
func (s *frameSender) Write(d []byte) (int, error) {
	if len(d) == 0 {
		return 0, errNoFrameData
	}
	n, err := s.pool.Write(d)
	if err != nil {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		if errors.Is(err, pool.ErrDropped) {
			s.log.Debug(pkg+"frame sender pool full, dropping frame")
			return n, nil
		}
		return n, fmt.Errorf("could not buffer frame: %w", err)
	}
	s.pool.Flush()
	return len(d), nil
}

// counts returns the number of frames written to the destination and the
// number dropped.
func (s *frameSender) counts() (sent, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.dropped
}

// Close implements io.Closer. Frames still pooled are discarded.
func (s *frameSender) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.dst.Close()
}
