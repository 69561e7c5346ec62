package hostfuncs

import (
	"context"
	"fmt"

	"github.com/reglet-dev/modbridge/domain/entities"
	"github.com/reglet-dev/modbridge/domain/ports"
	"github.com/reglet-dev/modbridge/wireformat"
)

// Session is one host call: a load, an unload, a command invocation or an
// event delivery. Its handle is the ports.CtxHandle the module sees; string
// handles it hands out and the reply it accumulates die with it.
type Session struct {
	ctx     context.Context
	reply   *BoundedBuffer
	name    string
	strings []ports.StringHandle
	scratch wireformat.Writer
	handle  ports.CtxHandle
	depth   int
}

// Handle returns the session's call handle.
func (sess *Session) Handle() ports.CtxHandle {
	return sess.handle
}

// Name returns what the session was opened for.
func (sess *Session) Name() string {
	return sess.name
}

// Begin opens a session. The caller must End it.
func (s *Server) Begin(ctx context.Context, name string) *Session {
	return s.begin(ctx, name, 0)
}

func (s *Server) begin(ctx context.Context, name string, depth int) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	sess := &Session{
		ctx:    ctx,
		name:   name,
		depth:  depth,
		handle: ports.CtxHandle(s.nextHandle.Add(1)),
		reply:  NewBoundedBuffer(s.cfg.maxReplySize),
	}
	s.sessionsMu.Lock()
	s.sessions[sess.handle] = sess
	s.sessionsMu.Unlock()
	return sess
}

// End closes the session and releases its string handles.
func (s *Server) End(sess *Session) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, sess.handle)
	for _, h := range sess.strings {
		delete(s.strings, h)
	}
	sess.strings = nil
}

// String hands out a string handle valid until the session ends.
func (s *Server) String(sess *Session, value []byte) ports.StringHandle {
	h := ports.StringHandle(s.nextHandle.Add(1))
	b := append([]byte(nil), value...)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.strings[h] = b
	sess.strings = append(sess.strings, h)
	return h
}

// Strings is String for a whole argument vector.
func (s *Server) Strings(sess *Session, values ...string) []ports.StringHandle {
	out := make([]ports.StringHandle, len(values))
	for i, v := range values {
		out[i] = s.String(sess, []byte(v))
	}
	return out
}

// StringBytes returns the bytes behind a live string handle.
func (s *Server) StringBytes(h ports.StringHandle) ([]byte, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	b, ok := s.strings[h]
	return b, ok
}

// Reply decodes what the session has written so far. A session that wrote
// nothing yields NoReply; an error reply is returned as the error.
func (s *Server) Reply(sess *Session) (entities.Value, error) {
	if sess.reply.Truncated {
		return nil, NewInternalError(fmt.Sprintf("reply exceeds %d bytes", s.cfg.maxReplySize)).ReplyError()
	}
	replies, err := wireformat.ParseAll(sess.reply.Bytes())
	if err != nil {
		return nil, NewInternalError(fmt.Sprintf("malformed reply: %v", err)).ReplyError()
	}
	if len(replies) == 0 {
		return entities.NoReply{}, nil
	}
	if len(replies) > 1 {
		s.cfg.logger.Warn("command wrote more than one reply", "session", sess.name, "replies", len(replies))
	}
	if replies[0].Err != nil {
		return nil, replies[0].Err
	}
	return replies[0].Value, nil
}

// RawReply returns the RESP bytes the session has written.
func (sess *Session) RawReply() []byte {
	return sess.reply.Bytes()
}

func (s *Server) session(h ports.CtxHandle) *Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[h]
}

// SessionContext returns the context the session h was opened with, or
// context.Background for a dead handle.
func (s *Server) SessionContext(h ports.CtxHandle) context.Context {
	if sess := s.session(h); sess != nil {
		return sess.ctx
	}
	return context.Background()
}

// write encodes one frame into the session's reply.
func (s *Server) write(h ports.CtxHandle, encode func(w *wireformat.Writer)) entities.Status {
	sess := s.session(h)
	if sess == nil {
		return entities.StatusErr
	}
	sess.scratch.Reset()
	encode(&sess.scratch)
	_, _ = sess.reply.Write(sess.scratch.Bytes())
	return entities.StatusFromBool(!sess.reply.Truncated)
}

func (s *Server) ReplyWithSimpleString(ctx ports.CtxHandle, str string) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.SimpleString(str) })
}

func (s *Server) ReplyWithError(ctx ports.CtxHandle, message string) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.Error(message) })
}

func (s *Server) ReplyWithLongLong(ctx ports.CtxHandle, v int64) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.Integer(v) })
}

func (s *Server) ReplyWithDouble(ctx ports.CtxHandle, v float64) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.Double(v) })
}

func (s *Server) ReplyWithStringBuffer(ctx ports.CtxHandle, b []byte) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.Bulk(b) })
}

func (s *Server) ReplyWithArray(ctx ports.CtxHandle, n int) entities.Status {
	if n < 0 {
		return entities.StatusErr
	}
	return s.write(ctx, func(w *wireformat.Writer) { w.ArrayHeader(n) })
}

func (s *Server) ReplyWithNull(ctx ports.CtxHandle) entities.Status {
	return s.write(ctx, func(w *wireformat.Writer) { w.Null() })
}
