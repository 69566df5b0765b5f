package lspserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/tsumiki/tsumiki-ls/internal/config"
)

const headerContentLength = "content-length"

type frameMode int32

const (
	frameUnknown frameMode = iota
	frameHeader
	frameLine
)

func (m frameMode) String() string {
	switch m {
	case frameHeader:
		return config.FramingHeader
	case frameLine:
		return config.FramingLine
	default:
		return config.FramingAuto
	}
}

// frameCodec is a jsonrpc2.ObjectCodec that reads header framed or line
// framed messages. Frames that do not hold a JSON-RPC request or response
// are logged and skipped so a single bad message never ends the session.
type frameCodec struct {
	fixed    frameMode
	detected atomic.Int32
	logger   *logrus.Entry
}

func newFrameCodec(framing string, logger *logrus.Entry) *frameCodec {
	c := &frameCodec{logger: logger}
	switch framing {
	case config.FramingHeader:
		c.fixed = frameHeader
	case config.FramingLine:
		c.fixed = frameLine
	}
	return c
}

// outgoing returns the framing used for messages sent to the client.
func (c *frameCodec) outgoing() frameMode {
	if c.fixed != frameUnknown {
		return c.fixed
	}
	if m := frameMode(c.detected.Load()); m != frameUnknown {
		return m
	}
	return frameHeader
}

// WriteObject implements jsonrpc2.ObjectCodec.
func (c *frameCodec) WriteObject(stream io.Writer, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if c.outgoing() == frameLine {
		data = append(data, '\n')
		_, err = stream.Write(data)
		return err
	}
	if _, err := fmt.Fprintf(stream, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = stream.Write(data)
	return err
}

// ReadObject implements jsonrpc2.ObjectCodec. It returns only on a valid
// message or a stream error.
func (c *frameCodec) ReadObject(stream *bufio.Reader, v any) error {
	for {
		body, err := c.readFrame(stream)
		if err != nil {
			return err
		}
		if body == nil {
			continue
		}
		if reason := classify(body); reason != "" {
			c.logger.WithField("frame", truncate(body, 120)).Warnf("skipping malformed message: %s", reason)
			continue
		}
		if err := decodeInto(body, v); err != nil {
			c.logger.WithError(err).Warn("skipping undecodable message")
			continue
		}
		return nil
	}
}

// readFrame returns the next frame body, or nil for input that carried no
// frame (blank lines, broken headers).
func (c *frameCodec) readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return nil, err
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}

	mode := c.fixed
	if mode == frameUnknown {
		mode = frameLine
		if looksLikeHeader(trimmed) {
			mode = frameHeader
		}
		if c.detected.CompareAndSwap(int32(frameUnknown), int32(mode)) {
			c.logger.Debugf("detected %s framing", mode)
		}
	}

	if mode == frameLine {
		return []byte(trimmed), nil
	}
	if !looksLikeHeader(trimmed) {
		c.logger.WithField("line", trimmed).Warn("skipping unframed input")
		return nil, nil
	}
	return c.readHeaderBody(r, trimmed)
}

func (c *frameCodec) readHeaderBody(r *bufio.Reader, first string) ([]byte, error) {
	length := -1
	for header := first; header != ""; {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			c.logger.WithField("header", header).Warn("skipping malformed header")
			return nil, nil
		}
		if strings.EqualFold(strings.TrimSpace(name), headerContentLength) {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				c.logger.WithField("header", header).Warn("skipping frame with invalid Content-Length")
				return nil, nil
			}
			length = n
		}
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		header = strings.TrimSpace(line)
	}
	if length < 0 {
		c.logger.Warn("skipping frame without Content-Length")
		return nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func looksLikeHeader(line string) bool {
	name, _, ok := strings.Cut(line, ":")
	return ok && !strings.ContainsAny(name, "{[\" ")
}

// classify reports why body is not a JSON-RPC message, or "" if it is one.
func classify(body []byte) string {
	if !gjson.ValidBytes(body) {
		return "invalid JSON"
	}
	msg := gjson.ParseBytes(body)
	if !msg.IsObject() {
		return "not a JSON object"
	}
	hasMethod := msg.Get("method").Type == gjson.String
	isResponse := msg.Get("id").Exists() && (msg.Get("result").Exists() || msg.Get("error").Exists())
	switch {
	case hasMethod && isResponse:
		return "both request and response"
	case !hasMethod && !isResponse:
		return "neither request nor response"
	}
	return ""
}

// decodeInto unmarshals into a fresh value so a failed decode leaves v
// untouched.
func decodeInto(body []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return json.Unmarshal(body, v)
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(body, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
