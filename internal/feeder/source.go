package feeder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// ErrNoImages is returned by a loop source whose directory holds no images.
var ErrNoImages = errors.New("no images in source directory")

// Source yields the path of the next image to stream.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// LoopSource cycles through the images of a directory in name order. The
// directory is listed again at the start of every pass.
type LoopSource struct {
	dir   string
	files []string
	pos   int
}

// NewLoopSource creates a loop over dir.
func NewLoopSource(dir string) *LoopSource {
	return &LoopSource{dir: dir}
}

func (s *LoopSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.files) {
		files, err := listImages(s.dir)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "", fmt.Errorf("%w: %s", ErrNoImages, s.dir)
		}
		s.files, s.pos = files, 0
	}

	path := s.files[s.pos]
	s.pos++
	return path, nil
}

func (s *LoopSource) Close() error { return nil }

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// WatchSource yields every image written into a directory after it starts
// watching. Only the newest pending image is kept, so a slow consumer skips
// ahead instead of falling behind.
type WatchSource struct {
	watcher *fsnotify.Watcher
	latest  chan string
	done    chan struct{}
}

// NewWatchSource starts watching dir.
func NewWatchSource(dir string) (*WatchSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	s := &WatchSource{
		watcher: watcher,
		latest:  make(chan string, 1),
		done:    make(chan struct{}),
	}
	go s.handleEvents()
	return s, nil
}

func (s *WatchSource) handleEvents() {
	defer close(s.done)
	l := pkglog.L()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isImage(event.Name) {
				continue
			}
			s.offer(event.Name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			l.Warn().Err(err).Msg("source watcher error")
		}
	}
}

// offer replaces any pending path with path.
func (s *WatchSource) offer(path string) {
	for {
		select {
		case s.latest <- path:
			return
		default:
		}
		select {
		case <-s.latest:
		default:
		}
	}
}

func (s *WatchSource) Next(ctx context.Context) (string, error) {
	select {
	case path := <-s.latest:
		return path, nil
	case <-s.done:
		return "", errors.New("source watcher closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *WatchSource) Close() error {
	err := s.watcher.Close()
	<-s.done
	return err
}
