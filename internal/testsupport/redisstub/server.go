// Package redisstub runs a minimal in-process Redis protocol server covering
// the hash commands the stream directory uses. Tests point a real client at
// Addr instead of mocking the client API.
package redisstub

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

type Options struct {
	Password string
}

type Server struct {
	opts     Options
	listener net.Listener
	addr     string
	mu       sync.Mutex
	hashes   map[string]map[string]string
	closed   chan struct{}
}

func Start(opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	server := &Server{
		opts:     opts,
		listener: ln,
		addr:     ln.Addr().String(),
		hashes:   make(map[string]map[string]string),
		closed:   make(chan struct{}),
	}
	go server.serve()
	return server, nil
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Close() error {
	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return nil
	default:
	}
	close(s.closed)
	s.mu.Unlock()
	return s.listener.Close()
}

// Hash returns a copy of the named hash for assertions.
func (s *Server) Hash(key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]string, len(s.hashes[key]))
	for field, value := range s.hashes[key] {
		copied[field] = value
	}
	return copied
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	authenticated := s.opts.Password == ""
	for {
		args, err := readArray(reader)
		if err != nil {
			return
		}
		if len(args) == 0 {
			if writeError(writer, "ERR wrong number of arguments") != nil {
				return
			}
			continue
		}

		var replyErr error
		switch cmd := strings.ToUpper(args[0]); cmd {
		case "PING":
			replyErr = writeSimpleString(writer, "PONG")
		case "AUTH":
			password := args[len(args)-1]
			if s.opts.Password == "" || password == s.opts.Password {
				authenticated = true
				replyErr = writeSimpleString(writer, "OK")
			} else {
				replyErr = writeError(writer, "WRONGPASS invalid username-password pair")
			}
		case "SELECT", "CLIENT":
			replyErr = writeSimpleString(writer, "OK")
		case "HELLO":
			// Force the client down to RESP2.
			replyErr = writeError(writer, "ERR unknown command 'HELLO'")
		default:
			if !authenticated {
				replyErr = writeError(writer, "NOAUTH Authentication required.")
				break
			}
			replyErr = s.dispatch(writer, cmd, args[1:])
		}
		if replyErr != nil {
			return
		}
	}
}

func (s *Server) dispatch(writer *bufio.Writer, cmd string, args []string) error {
	switch cmd {
	case "HSET":
		if len(args) < 3 || len(args)%2 == 0 {
			return writeError(writer, "ERR wrong number of arguments for 'hset'")
		}
		s.mu.Lock()
		hash := s.hashes[args[0]]
		if hash == nil {
			hash = make(map[string]string)
			s.hashes[args[0]] = hash
		}
		var added int64
		for i := 1; i+1 < len(args); i += 2 {
			if _, exists := hash[args[i]]; !exists {
				added++
			}
			hash[args[i]] = args[i+1]
		}
		s.mu.Unlock()
		return writeInteger(writer, added)
	case "HDEL":
		if len(args) < 2 {
			return writeError(writer, "ERR wrong number of arguments for 'hdel'")
		}
		s.mu.Lock()
		hash := s.hashes[args[0]]
		var removed int64
		for _, field := range args[1:] {
			if _, exists := hash[field]; exists {
				delete(hash, field)
				removed++
			}
		}
		s.mu.Unlock()
		return writeInteger(writer, removed)
	case "HGETALL":
		if len(args) != 1 {
			return writeError(writer, "ERR wrong number of arguments for 'hgetall'")
		}
		s.mu.Lock()
		flat := make([]string, 0, len(s.hashes[args[0]])*2)
		for field, value := range s.hashes[args[0]] {
			flat = append(flat, field, value)
		}
		s.mu.Unlock()
		return writeStringArray(writer, flat)
	case "DEL":
		if len(args) < 1 {
			return writeError(writer, "ERR wrong number of arguments for 'del'")
		}
		s.mu.Lock()
		var removed int64
		for _, key := range args {
			if _, exists := s.hashes[key]; exists {
				delete(s.hashes, key)
				removed++
			}
		}
		s.mu.Unlock()
		return writeInteger(writer, removed)
	default:
		return writeError(writer, fmt.Sprintf("ERR unknown command '%s'", strings.ToLower(cmd)))
	}
}

func readArray(r *bufio.Reader) ([]string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if prefix != '*' {
		return nil, fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, length)
	for i := 0; i < length; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func readLength(r *bufio.Reader) (int, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	return strconv.Atoi(line)
}

func readBulkString(r *bufio.Reader) (string, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	if prefix != '$' {
		return "", fmt.Errorf("unexpected prefix %q", prefix)
	}
	length, err := readLength(r)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", nil
	}
	buf := make([]byte, length+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf[:length]), nil
}

func writeSimpleString(w *bufio.Writer, value string) error {
	if _, err := fmt.Fprintf(w, "+%s\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeInteger(w *bufio.Writer, value int64) error {
	if _, err := fmt.Fprintf(w, ":%d\r\n", value); err != nil {
		return err
	}
	return w.Flush()
}

func writeStringArray(w *bufio.Writer, values []string) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n", len(values)); err != nil {
		return err
	}
	for _, value := range values {
		if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(value), value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeError(w *bufio.Writer, msg string) error {
	if _, err := fmt.Fprintf(w, "-%s\r\n", msg); err != nil {
		return err
	}
	return w.Flush()
}
