// ABOUTME: Datasource opening for the playback engine
// ABOUTME: Resolves file, HTTP and WebSocket URLs into decoded PCM streams
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/Resonate-Protocol/aptest/internal/version"
	"github.com/Resonate-Protocol/aptest/pkg/audio/decode"
	"github.com/gorilla/websocket"
)

// Source is a decoded datasource
type Source interface {
	decode.Stream

	// Metadata describes the stream; fields are empty when unknown
	Metadata() Metadata
}

// Opener resolves a datasource URL into a Source. ctx bounds the connection lifetime.
type Opener func(ctx context.Context, rawURL string) (Source, error)

type source struct {
	decode.Stream
	meta   Metadata
	closer io.Closer
}

func (s *source) Metadata() Metadata { return s.meta }

func (s *source) Close() error {
	err := s.Stream.Close()
	if s.closer != nil {
		// FLAC streams close their reader themselves
		if cerr := s.closer.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = cerr
		}
	}
	return err
}

// Open resolves rawURL by scheme: plain paths and file:// read local files,
// http(s):// streams a response body and ws(s):// concatenates binary frames.
func (s *System) Open(ctx context.Context, rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return s.openFile(rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return s.openFile(u.Path)
	case "http", "https":
		return s.openHTTP(ctx, u)
	case "ws", "wss":
		return s.openWebSocket(ctx, u)
	default:
		return nil, &SourceError{Op: "open", URL: rawURL, Err: fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)}
	}
}

func (s *System) openFile(name string) (Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, &SourceError{Op: "open", URL: name, Err: err}
	}

	meta, err := readTags(f, name)
	if err != nil {
		f.Close()
		return nil, &SourceError{Op: "read tags", URL: name, Err: err}
	}

	codec := decode.CodecFromPath(name)
	stream, err := decode.New(codec, f)
	if err != nil {
		f.Close()
		return nil, &SourceError{Op: "decode", URL: name, Err: err}
	}
	meta.Codec = codec

	s.log.Debugf("Opened file %s (%s, %s)", name, codec, stream.Format())
	return &source{Stream: stream, meta: meta, closer: f}, nil
}

func (s *System) openHTTP(ctx context.Context, u *url.URL) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &SourceError{Op: "request", URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Icy-MetaData", "0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SourceError{Op: "fetch", URL: u.String(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &SourceError{Op: "fetch", URL: u.String(), Err: fmt.Errorf("HTTP error: %s", resp.Status)}
	}

	codec := decode.CodecFromPath(u.Path)
	if codec == "" {
		codec = decode.CodecFromContentType(resp.Header.Get("Content-Type"))
	}
	if codec == "" {
		// Shoutcast-style endpoints often have no extension and a generic content type
		codec = decode.CodecMP3
	}

	stream, err := decode.New(codec, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, &SourceError{Op: "decode", URL: u.String(), Err: err}
	}

	meta := Metadata{
		Title: resp.Header.Get("Icy-Name"),
		Genre: resp.Header.Get("Icy-Genre"),
		Codec: codec,
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	}

	s.log.Debugf("Streaming %s from HTTP: %s (%s)", codec, u, stream.Format())
	return &source{Stream: stream, meta: meta, closer: resp.Body}, nil
}

func (s *System) openWebSocket(ctx context.Context, u *url.URL) (Source, error) {
	header := http.Header{"User-Agent": []string{version.UserAgent()}}
	conn, _, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, &SourceError{Op: "dial", URL: u.String(), Err: err}
	}
	// Unblocks a pending read when the session is reset
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	codec := u.Query().Get("codec")
	if codec == "" {
		codec = decode.CodecFromPath(u.Path)
	}
	if codec == "" {
		codec = decode.CodecMP3
	}

	r := &wsReader{conn: conn, stop: stop}
	stream, err := decode.New(codec, r)
	if err != nil {
		r.Close()
		return nil, &SourceError{Op: "decode", URL: u.String(), Err: err}
	}

	s.log.Debugf("Streaming %s from WebSocket: %s (%s)", codec, u, stream.Format())
	return &source{
		Stream: stream,
		meta:   Metadata{Title: u.Host + u.Path, Codec: codec},
		closer: r,
	}, nil
}

// wsReader presents the binary messages of a WebSocket connection as one byte stream
type wsReader struct {
	conn *websocket.Conn
	cur  io.Reader
	stop func() bool
}

func (r *wsReader) Read(p []byte) (int, error) {
	for {
		if r.cur != nil {
			n, err := r.cur.Read(p)
			if err == io.EOF {
				r.cur = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}

		msgType, next, err := r.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		// Text frames carry no audio
		if msgType != websocket.BinaryMessage {
			continue
		}
		r.cur = next
	}
}

func (r *wsReader) Close() error {
	r.stop()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = r.conn.WriteMessage(websocket.CloseMessage, msg)
	return r.conn.Close()
}
