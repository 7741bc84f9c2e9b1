// Package serve implements the JSON-RPC server for the skald editor
// extension. It communicates over stdio (stdin/stdout) using
// newline-delimited JSON messages: requests carry an id, notifications
// from the server (exec/state, exec/block) do not.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/skaldhq/skald/pkg/parser"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/runtime"
)

// Message is a JSON-RPC 2.0 message (request or notification).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"` // nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SessionParams identify a session by document URI.
type SessionParams struct {
	Session string `json:"session"`
}

// ParseParams are the parameters for playbook/parse.
type ParseParams struct {
	Session string `json:"session"`
	Text    string `json:"text"`
}

// BlockInfo is the per-block payload of a playbook/parse result, shaped
// for editor decoration placement.
type BlockInfo struct {
	Name               string             `json:"name"`
	Line               int                `json:"line"`
	AnnotationPosition *playbook.Position `json:"annotationPosition,omitempty"`
	Language           string             `json:"language,omitempty"`
	Flags              []playbook.Flag    `json:"flags,omitempty"`
}

// StateInfo is the payload of state/get results and exec/state events.
type StateInfo struct {
	Session     string `json:"session"`
	State       string `json:"state"`
	CurrentLine int    `json:"currentLine,omitempty"`
	FailedLine  int    `json:"failedLine,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Server wraps the playbook runtime behind the editor transport. One
// server process hosts many sessions, keyed by document URI.
type Server struct {
	reader io.Reader
	writer io.Writer
	wmu    sync.Mutex // serializes writes to the transport

	executor *runtime.Executor
	manager  *runtime.Manager
	log      *slog.Logger

	mu        sync.Mutex
	playbooks map[string]*playbook.Playbook // latest parse per session

	runs sync.WaitGroup
}

// New creates a server over stdio with the given executor.
func New(executor *runtime.Executor, log *slog.Logger) *Server {
	return NewWith(os.Stdin, os.Stdout, executor, log)
}

// NewWith creates a server over an arbitrary transport. Used by tests.
func NewWith(r io.Reader, w io.Writer, executor *runtime.Executor, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		reader:    r,
		writer:    w,
		executor:  executor,
		log:       log,
		playbooks: make(map[string]*playbook.Playbook),
	}
	s.manager = runtime.NewManager(runtime.Hooks{
		OnState: func(id string, st runtime.State) {
			s.sendEvent("exec/state", StateInfo{Session: id, State: string(st)})
		},
		OnHighlight: func(id string, current, failed int) {
			s.sendEvent("exec/block", map[string]any{
				"session":     id,
				"currentLine": current,
				"failedLine":  failed,
			})
		},
	})
	return s
}

// Run reads messages until EOF, dispatching each. It waits for any
// in-flight playbook runs before returning.
func (s *Server) Run() error {
	defer s.runs.Wait()

	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.sendError(nil, -32700, fmt.Sprintf("parse error: %v", err))
			continue
		}
		s.dispatch(&msg)
	}
	return scanner.Err()
}

func (s *Server) dispatch(msg *Message) {
	s.log.Debug("rpc", "method", msg.Method)
	switch msg.Method {
	case "session/open":
		s.handleSessionOpen(msg)
	case "session/close":
		s.handleSessionClose(msg)
	case "playbook/parse":
		s.handleParse(msg)
	case "exec/start":
		s.handleExecStart(msg)
	case "exec/pause":
		s.withSession(msg, func(sess *runtime.Session) { sess.RequestPause() })
	case "exec/resume":
		s.withSession(msg, func(sess *runtime.Session) { sess.Resume() })
	case "exec/stop":
		s.withSession(msg, func(sess *runtime.Session) { sess.RequestStop() })
	case "state/get":
		s.handleStateGet(msg)
	case "shutdown":
		s.sendResult(msg.ID, map[string]string{"status": "shutting down"})
	default:
		s.sendError(msg.ID, -32601, fmt.Sprintf("unknown method: %s", msg.Method))
	}
}

func (s *Server) handleSessionOpen(msg *Message) {
	var params SessionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Session == "" {
		s.sendError(msg.ID, -32602, "session/open requires a session uri")
		return
	}
	sess := s.manager.Open(params.Session)
	s.log.Info("session opened", "session", params.Session)
	s.sendResult(msg.ID, s.stateInfo(sess))
}

func (s *Server) handleSessionClose(msg *Message) {
	var params SessionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Session == "" {
		s.sendError(msg.ID, -32602, "session/close requires a session uri")
		return
	}
	// Closing the host view is an implicit stop.
	s.manager.Close(params.Session)
	s.mu.Lock()
	delete(s.playbooks, params.Session)
	s.mu.Unlock()
	s.log.Info("session closed", "session", params.Session)
	s.sendResult(msg.ID, map[string]string{"status": "closed"})
}

func (s *Server) handleParse(msg *Message) {
	var params ParseParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Session == "" {
		s.sendError(msg.ID, -32602, "playbook/parse requires session and text")
		return
	}

	pb := parser.Parse(params.Text)
	s.mu.Lock()
	s.playbooks[params.Session] = pb
	s.mu.Unlock()

	blocks := make([]BlockInfo, 0, len(pb.Blocks))
	for _, b := range pb.Blocks {
		blocks = append(blocks, BlockInfo{
			Name:               b.Name,
			Line:               b.Line,
			AnnotationPosition: b.AnnotationPosition,
			Language:           b.Language,
			Flags:              b.Flags,
		})
	}
	s.sendResult(msg.ID, map[string]any{
		"blocks":     blocks,
		"errors":     pb.Errors,
		"executable": !pb.HasCriticalErrors(),
	})
}

func (s *Server) handleExecStart(msg *Message) {
	var params SessionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Session == "" {
		s.sendError(msg.ID, -32602, "exec/start requires a session uri")
		return
	}

	sess, ok := s.manager.Get(params.Session)
	if !ok {
		s.sendError(msg.ID, -32603, fmt.Sprintf("session %q is not open", params.Session))
		return
	}
	s.mu.Lock()
	pb := s.playbooks[params.Session]
	s.mu.Unlock()
	if pb == nil {
		s.sendError(msg.ID, -32603, "no parsed playbook for session; call playbook/parse first")
		return
	}
	if pb.HasCriticalErrors() {
		s.sendError(msg.ID, -32603, "playbook has critical parse errors")
		return
	}

	// Concurrent starts are a conflict the caller must see, not a queue.
	switch sess.State() {
	case runtime.StateRunning, runtime.StatePaused:
		s.sendError(msg.ID, -32603, fmt.Sprintf("session %q is already running", params.Session))
		return
	case runtime.StateError:
		// Pressing run after a failure restarts from the top.
		if err := sess.Reset(); err != nil {
			s.sendError(msg.ID, -32603, err.Error())
			return
		}
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if err := s.executor.Run(context.Background(), sess, pb); err != nil {
			s.log.Error("run failed", "session", params.Session, "error", err)
		}
	}()
	s.log.Info("run started", "session", params.Session)
	s.sendResult(msg.ID, map[string]string{"status": "started"})
}

func (s *Server) handleStateGet(msg *Message) {
	s.withSession(msg, nil)
}

// withSession resolves the session named in the params, applies fn, and
// answers with the session's state.
func (s *Server) withSession(msg *Message, fn func(*runtime.Session)) {
	var params SessionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Session == "" {
		s.sendError(msg.ID, -32602, "missing session uri")
		return
	}
	sess, ok := s.manager.Get(params.Session)
	if !ok {
		s.sendError(msg.ID, -32603, fmt.Sprintf("session %q is not open", params.Session))
		return
	}
	if fn != nil {
		fn(sess)
	}
	s.sendResult(msg.ID, s.stateInfo(sess))
}

func (s *Server) stateInfo(sess *runtime.Session) StateInfo {
	current, failed := sess.Highlights()
	return StateInfo{
		Session:     sess.ID,
		State:       string(sess.State()),
		CurrentLine: current,
		FailedLine:  failed,
		LastError:   sess.LastError(),
	}
}

func (s *Server) sendResult(id *int, result interface{}) {
	data, _ := json.Marshal(result)
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: json.RawMessage(data)})
}

func (s *Server) sendError(id *int, code int, message string) {
	s.send(&Message{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) sendEvent(method string, params interface{}) {
	data, _ := json.Marshal(params)
	s.send(&Message{JSONRPC: "2.0", Method: method, Params: json.RawMessage(data)})
}

func (s *Server) send(msg *Message) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	data, _ := json.Marshal(msg)
	fmt.Fprintf(s.writer, "%s\n", data)
}
