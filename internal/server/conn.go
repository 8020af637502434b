package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ironsheep/yail-server/internal/errors"
	"github.com/ironsheep/yail-server/internal/imaging"
	"github.com/ironsheep/yail-server/internal/logger"
	"github.com/ironsheep/yail-server/internal/protocol"
	"github.com/ironsheep/yail-server/internal/source"
	"github.com/ironsheep/yail-server/internal/yail"
)

// contentKind is the last content command a connection ran, which next
// repeats.
type contentKind int

const (
	contentNone contentKind = iota
	contentSearch
	contentVideo
	contentGenerate
	contentFiles
)

// errClosing ends the command loop after an orderly goodbye.
var errClosing = errors.New("connection closing")

const forbiddenResponse = "HTTP/1.1 403 Forbidden\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Length: 10\r\n" +
	"Connection: close\r\n" +
	"\r\n" +
	"Forbidden\n"

// conn is the per-connection dispatcher. It is only ever used by the
// goroutine serving it, so its fields need no locking.
type conn struct {
	srv *Server
	nc  net.Conn
	id  string
	log *slog.Logger

	mode        yail.Mode
	last        contentKind
	lastBackend protocol.Backend
	urls        []string
}

var _ protocol.Handler = (*conn)(nil)

func newConn(s *Server, nc net.Conn) *conn {
	id := uuid.NewString()
	return &conn{
		srv:  s,
		nc:   nc,
		id:   id,
		log:  logger.With("conn", id),
		mode: yail.DefaultMode,
	}
}

// serve runs the command loop until the client quits, the connection fails
// or idles out, or a handler panics.
func (c *conn) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.New(apperrors.CodeStateInvariant, fmt.Sprint(r))
			c.srv.opts.Metrics.Panic()
			c.log.Error("connection handler panicked", "error", err, "stack", string(debug.Stack()))
		}
	}()

	scanner := bufio.NewScanner(c.nc)
	// the initial capacity must not exceed the limit or the limit is ignored
	scanner.Buffer(make([]byte, 0, min(1024, c.srv.opts.MaxLineBytes)), c.srv.opts.MaxLineBytes)

	for {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.srv.opts.IdleTimeout)); err != nil {
			c.log.Debug("set read deadline failed", "error", err)
			return
		}
		if !scanner.Scan() {
			c.readFailed(scanner.Err())
			return
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd := protocol.Parse(line)
		c.log.Debug("command received", "command", cmd.Name(), "line", line)

		start := time.Now()
		err := cmd.Dispatch(ctx, c)
		c.observe(cmd, err, time.Since(start))

		switch {
		case err == nil:
		case errors.Is(err, errClosing):
			return
		case apperrors.IsCode(err, apperrors.CodeStateInvariant):
			c.log.Error("state invariant violated, closing", "command", cmd.Name(), "error", err)
			_ = c.writeError(err)
			return
		case apperrors.IsTransport(err):
			c.log.Warn("connection failed", "command", cmd.Name(), "error", err)
			return
		default:
			c.log.Info("command failed", "command", cmd.Name(), "error", err)
			if werr := c.writeError(err); werr != nil {
				c.log.Warn("connection failed", "error", werr)
				return
			}
		}
	}
}

func (c *conn) readFailed(err error) {
	var ne net.Error
	switch {
	case err == nil:
		// clean EOF
	case errors.Is(err, bufio.ErrTooLong):
		c.log.Warn("command line too long, closing", "limit", c.srv.opts.MaxLineBytes)
		_ = c.write(errorLine(apperrors.CodeProtocolLineTooLong,
			fmt.Sprintf("command longer than %d bytes", c.srv.opts.MaxLineBytes)))
		c.drain()
	case errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()):
		c.log.Info("client idle, closing", "timeout", c.srv.opts.IdleTimeout)
	case errors.Is(err, net.ErrClosed):
	default:
		c.log.Warn("read failed", "error", apperrors.Wrap(apperrors.CodeTransportReadFailed, "read failed", err))
	}
}

// drain discards pending input briefly so closing the socket sends a FIN
// rather than a reset that could destroy the reply just written.
func (c *conn) drain() {
	_ = c.nc.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
	_, _ = io.Copy(io.Discard, io.LimitReader(c.nc, 64*1024))
}

func (c *conn) observe(cmd protocol.Command, err error, d time.Duration) {
	code := "ok"
	if err != nil && !errors.Is(err, errClosing) {
		code = apperrors.GetCode(err)
	}
	c.srv.opts.Metrics.ObserveCommand(cmd.Name(), code, d)
}

// Video sends one camera frame.
func (c *conn) Video(ctx context.Context, _ protocol.Video) error {
	c.last = contentVideo
	return c.sendCameraFrame(ctx)
}

// Search runs an image search and sends a random result.
func (c *conn) Search(ctx context.Context, cmd protocol.Search) error {
	c.last = contentSearch
	c.urls = nil
	if c.srv.sources.Searcher == nil {
		return apperrors.NotAvailable("image search is not configured")
	}

	sctx, cancel := context.WithTimeout(ctx, c.srv.opts.SearchTimeout)
	urls, err := c.srv.sources.Searcher.Search(sctx, cmd.Terms)
	cancel()
	if err != nil {
		return apperrors.Upstream("image search", err)
	}
	c.log.Info("search finished", "terms", cmd.Terms, "results", len(urls))
	c.urls = urls
	return c.sendRandomURL(ctx)
}

// Generate creates an image from the prompt and sends it.
func (c *conn) Generate(ctx context.Context, cmd protocol.Generate) error {
	c.last = contentGenerate
	c.lastBackend = cmd.Backend
	c.srv.state.SetLastPrompt(cmd.Prompt)
	return c.sendGenerated(ctx, cmd.Backend, cmd.Prompt)
}

// Files sends a random local image.
func (c *conn) Files(ctx context.Context, _ protocol.Files) error {
	c.last = contentFiles
	return c.sendRandomFile(ctx)
}

// Next repeats the last content command.
func (c *conn) Next(ctx context.Context, _ protocol.Next) error {
	switch c.last {
	case contentSearch:
		return c.sendRandomURL(ctx)
	case contentVideo:
		return c.sendCameraFrame(ctx)
	case contentGenerate:
		prompt, ok := c.srv.state.LastPrompt()
		if !ok {
			return apperrors.New(apperrors.CodeProtocolNothingToRepeat, "no previous prompt to regenerate")
		}
		c.log.Info("regenerating image", "prompt", prompt)
		return c.sendGenerated(ctx, c.lastBackend, prompt)
	case contentFiles:
		return c.sendRandomFile(ctx)
	}
	return apperrors.New(apperrors.CodeProtocolNothingToRepeat, "no previous command to repeat")
}

// Gfx switches the graphics mode for later images. Success is silent: the
// client's next read after gfx is the following command's packet.
func (c *conn) Gfx(_ context.Context, cmd protocol.Gfx) error {
	c.mode = cmd.Mode
	c.log.Info("graphics mode set", "mode", cmd.Mode.String())
	return nil
}

// Config reports or changes the image generation settings.
func (c *conn) Config(_ context.Context, cmd protocol.Config) error {
	if cmd.Param == "" {
		return c.writeOK("current generation config: " + c.srv.settings.String())
	}
	if err := c.srv.settings.Set(cmd.Param, cmd.Value); err != nil {
		return err
	}
	c.log.Info("generation setting changed", "param", cmd.Param, "value", cmd.Value)
	return c.writeOK(fmt.Sprintf("%s set to %s", cmd.Param, cmd.Value))
}

// Quit ends the session.
func (c *conn) Quit(context.Context, protocol.Quit) error {
	c.log.Info("client quit")
	return errClosing
}

// HTTPProbe refuses HTTP requests sent to the image port.
func (c *conn) HTTPProbe(_ context.Context, cmd protocol.HTTPProbe) error {
	c.log.Warn("HTTP request on image port, refusing", "method", cmd.Method, "remote", c.nc.RemoteAddr().String())
	_ = c.write([]byte(forbiddenResponse))
	return errClosing
}

// Invalid reports an unparseable command; the connection stays open.
func (c *conn) Invalid(_ context.Context, cmd protocol.Invalid) error {
	return apperrors.InvalidCommand(cmd.Reason)
}

func (c *conn) sendCameraFrame(ctx context.Context) error {
	if c.srv.sources.Camera == nil {
		return apperrors.NotAvailable("no camera configured")
	}
	cctx, cancel := context.WithTimeout(ctx, c.srv.opts.CameraTimeout)
	pix, err := c.srv.sources.Camera.Capture(cctx)
	cancel()
	if err != nil {
		return apperrors.Upstream("camera capture", err)
	}
	return c.sendImage(ctx, pix)
}

func (c *conn) sendRandomURL(ctx context.Context) error {
	if len(c.urls) == 0 {
		return apperrors.NotAvailable("no images found")
	}
	if c.srv.sources.URLs == nil {
		return apperrors.NotAvailable("image download is not configured")
	}
	urls := c.urls
	pick := func() (string, bool) {
		return urls[rand.IntN(len(urls))], true
	}
	return c.sendFetched(ctx, c.srv.sources.URLs, pick, c.srv.opts.Retry)
}

func (c *conn) sendRandomFile(ctx context.Context) error {
	if c.srv.state.FilenameCount() == 0 {
		return apperrors.NotAvailable("no image files available")
	}
	if c.srv.sources.Files == nil {
		return apperrors.NotAvailable("local files are not configured")
	}
	policy := c.srv.opts.Retry
	policy.Discard = func(path string) {
		if c.srv.state.ForgetFilename(path) {
			c.log.Warn("unreadable image file dropped from pool", "path", path)
		}
	}
	return c.sendFetched(ctx, c.srv.sources.Files, c.srv.state.PickRandomFilename, policy)
}

func (c *conn) sendFetched(ctx context.Context, src source.ImageSource, pick func() (string, bool), policy source.RetryPolicy) error {
	fctx, cancel := context.WithTimeout(ctx, c.srv.opts.FetchTimeout)
	pix, ref, err := source.FetchRandom(fctx, src, pick, policy)
	cancel()
	if err != nil {
		return err
	}
	c.log.Info("streaming image", "ref", ref, "mode", c.mode.String())
	return c.sendImage(ctx, pix)
}

func (c *conn) sendGenerated(ctx context.Context, backend protocol.Backend, prompt string) error {
	gen, model := c.srv.sources.Generator, c.srv.settings.Model()
	if backend == protocol.BackendGemini {
		gen, model = c.srv.sources.Gemini, "gemini"
	}
	if gen == nil {
		return apperrors.NotAvailable("image generation is not configured")
	}
	c.srv.state.SetLastModel(model)
	c.log.Info("generating image", "model", model, "prompt", prompt)

	gctx, cancel := context.WithTimeout(ctx, c.srv.opts.GenerateTimeout)
	pix, err := gen.Generate(gctx, prompt)
	cancel()
	if err != nil {
		return apperrors.Upstream("image generation", err)
	}
	return c.sendImage(ctx, pix)
}

// sendImage encodes pix in the connection's mode and writes the packet in a
// single call. Encodes are bounded by the server-wide limiter.
func (c *conn) sendImage(ctx context.Context, pix *imaging.PixelBuffer) error {
	if err := c.srv.encodes.Acquire(ctx, 1); err != nil {
		return apperrors.Wrap(apperrors.CodeTransportWriteFailed, "server shutting down", err)
	}
	start := time.Now()
	pkt, err := yail.Encode(pix, c.mode)
	var buf []byte
	if err == nil {
		buf, err = pkt.MarshalBinary()
	}
	c.srv.encodes.Release(1)

	if err != nil {
		return encodeError(err)
	}
	c.srv.opts.Metrics.ObserveEncode(c.mode.String(), time.Since(start), len(buf))
	return c.write(buf)
}

func encodeError(err error) error {
	switch {
	case errors.Is(err, yail.ErrInvalidDimensions):
		return apperrors.Wrap(apperrors.CodeEncodingInvalidDimensions, "image has invalid dimensions", err)
	case errors.Is(err, yail.ErrUnsupportedMode):
		return apperrors.Wrap(apperrors.CodeEncodingUnsupportedMode, "unsupported graphics mode", err)
	}
	return apperrors.Wrap(apperrors.CodeStateInvariant, "encoding failed", err)
}

func (c *conn) writeOK(msg string) error {
	return c.write([]byte("OK: " + msg + "\r\n"))
}

func (c *conn) writeError(err error) error {
	code, msg := apperrors.ToCodeAndMessage(err)
	return c.write(errorLine(code, msg))
}

// write writes b with one Write call under the write timeout.
func (c *conn) write(b []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout)); err != nil {
		return apperrors.Wrap(apperrors.CodeTransportWriteFailed, "write failed", err)
	}
	if _, err := c.nc.Write(b); err != nil {
		return apperrors.Wrap(apperrors.CodeTransportWriteFailed, "write failed", err)
	}
	return nil
}

func errorLine(code, msg string) []byte {
	return []byte("ERROR: " + code + ": " + msg + "\r\n")
}
