package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/b/tabsync/pkg/logging"
)

var daemonLog = logging.ForComponent(logging.CompDaemon)

const (
	writeTimeout = time.Second
	sendQueueLen = 32
)

// ClientInfo tracks one subscribed client.
type ClientInfo struct {
	ID   string
	Conn net.Conn

	// mu guards out against a send racing with close.
	mu     sync.Mutex
	out    chan Message
	closed bool
}

func (c *ClientInfo) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	c.Conn.Close()
}

// offer queues msg without blocking. It reports false when the queue is
// full; a closed client silently drops msg.
func (c *ClientInfo) offer(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// Server publishes the row list to connected clients and forwards their
// actions back to the engine.
type Server struct {
	socketPath string
	pidPath    string
	listener   net.Listener
	clients    map[string]*ClientInfo
	clientsMu  sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once

	sequenceNum uint64
	seqMu       sync.Mutex

	// RowsNeeded returns the current rows for a newly subscribed client.
	// Called from the client's connection goroutine.
	RowsNeeded func() *RowsPayload

	// OnAction receives validated actions. Called from the client's
	// connection goroutine.
	OnAction func(clientID string, action ActionPayload)
}

// NewServer creates a new daemon server
func NewServer(session string) *Server {
	return &Server{
		socketPath:  SocketPath(session),
		pidPath:     PidPath(session),
		clients:     make(map[string]*ClientInfo),
		done:        make(chan struct{}),
		sequenceNum: 1,
	}
}

// Start begins listening for client connections
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create runtime dir: %w", err)
	}
	if err := s.checkAndClaimPid(); err != nil {
		return err
	}

	// Safe now that we own the pidfile
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		os.Remove(s.pidPath)
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener
	daemonLog.Info("daemon_listening", slog.String("socket", s.socketPath))

	go s.acceptLoop()
	return nil
}

// checkAndClaimPid checks for existing daemon and claims pidfile
func (s *Server) checkAndClaimPid() error {
	if data, err := os.ReadFile(s.pidPath); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pid > 0 {
			if process, err := os.FindProcess(pid); err == nil {
				// On Unix FindProcess always succeeds; signal 0 probes liveness
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("daemon already running with pid %d", pid)
				}
			}
		}
		daemonLog.Debug("stale_pidfile_removed", slog.String("path", s.pidPath))
		os.Remove(s.pidPath)
	}

	pid := os.Getpid()
	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Stop shuts down the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.clientsMu.Lock()
		for id, client := range s.clients {
			client.close()
			delete(s.clients, id)
		}
		s.clientsMu.Unlock()
		os.Remove(s.socketPath)
		os.Remove(s.pidPath)
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetSocketPath returns the socket path
func (s *Server) GetSocketPath() string {
	return s.socketPath
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			daemonLog.Warn("accept_failed", slog.String("error", err.Error()))
			time.Sleep(10 * time.Millisecond)
			continue
		}
		go s.handleClient(conn)
	}
}

// handleClient processes messages from a client
func (s *Server) handleClient(conn net.Conn) {
	defer logging.RecoverAndLog(daemonLog, "daemon.handleClient")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var client *ClientInfo

	defer func() {
		if client != nil {
			s.removeClient(client)
		} else {
			conn.Close()
		}
	}()

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			daemonLog.Debug("bad_frame", slog.String("error", err.Error()))
			continue
		}

		switch msg.Type {
		case MsgSubscribe:
			if client != nil {
				continue
			}
			client = s.addClient(msg.ClientID, conn)
			s.sendRowsTo(client)

		case MsgUnsubscribe:
			return

		case MsgAction:
			var action ActionPayload
			err := msg.Decode(&action)
			if err == nil {
				err = action.Validate()
			}
			if err != nil {
				s.replyError(client, conn, err)
				continue
			}
			daemonLog.Debug("action_received",
				slog.String("client", msg.ClientID),
				slog.String("action", action.Action),
				slog.String("row", action.RowID))
			if s.OnAction != nil {
				s.OnAction(msg.ClientID, action)
			}

		case MsgPing:
			s.reply(client, conn, Message{Type: MsgPong})
		}
	}
}

func (s *Server) addClient(id string, conn net.Conn) *ClientInfo {
	if id == "" {
		id = fmt.Sprintf("client-%p", conn)
	}
	client := &ClientInfo{ID: id, Conn: conn, out: make(chan Message, sendQueueLen)}

	s.clientsMu.Lock()
	if prev, ok := s.clients[id]; ok {
		prev.close()
	}
	s.clients[id] = client
	s.clientsMu.Unlock()

	go s.writeLoop(client)
	daemonLog.Info("client_subscribed", slog.String("client", id))
	return client
}

func (s *Server) removeClient(client *ClientInfo) {
	s.clientsMu.Lock()
	if cur, ok := s.clients[client.ID]; ok && cur == client {
		delete(s.clients, client.ID)
	}
	s.clientsMu.Unlock()
	client.close()
	daemonLog.Info("client_disconnected", slog.String("client", client.ID))
}

// writeLoop owns all writes to a subscribed client's connection.
func (s *Server) writeLoop(client *ClientInfo) {
	for msg := range client.out {
		if err := sendMessage(client.Conn, msg); err != nil {
			daemonLog.Debug("client_write_failed", slog.String("client", client.ID), slog.String("error", err.Error()))
			s.removeClient(client)
			return
		}
	}
}

// enqueue hands msg to the client's writer. A client whose queue is full is
// too slow to keep up and gets disconnected.
func (s *Server) enqueue(client *ClientInfo, msg Message) {
	if !client.offer(msg) {
		daemonLog.Warn("client_too_slow", slog.String("client", client.ID))
		go s.removeClient(client)
	}
}

func (s *Server) reply(client *ClientInfo, conn net.Conn, msg Message) {
	if client != nil {
		s.enqueue(client, msg)
		return
	}
	sendMessage(conn, msg)
}

func (s *Server) replyError(client *ClientInfo, conn net.Conn, err error) {
	msg, _ := NewMessage(MsgError, "", ErrorPayload{Message: err.Error()})
	s.reply(client, conn, msg)
}

func (s *Server) nextSeq() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	n := s.sequenceNum
	s.sequenceNum++
	return n
}

func (s *Server) sendRowsTo(client *ClientInfo) {
	if s.RowsNeeded == nil {
		return
	}
	rows := s.RowsNeeded()
	if rows == nil {
		return
	}
	s.publish(rows, []*ClientInfo{client})
}

// BroadcastRows sends rows to every subscribed client.
func (s *Server) BroadcastRows(rows *RowsPayload) {
	s.clientsMu.RLock()
	clients := make([]*ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()
	if len(clients) == 0 {
		return
	}
	s.publish(rows, clients)
}

func (s *Server) publish(rows *RowsPayload, clients []*ClientInfo) {
	frame := *rows
	frame.SequenceNum = s.nextSeq()
	for _, c := range clients {
		msg, err := NewMessage(MsgRows, c.ID, frame)
		if err != nil {
			daemonLog.Error("encode_rows_failed", slog.String("error", err.Error()))
			return
		}
		s.enqueue(c, msg)
	}
}

// sendMessage writes one JSON frame with a write deadline.
func sendMessage(conn net.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(data)
	return err
}
