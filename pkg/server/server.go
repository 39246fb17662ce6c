// Package server implements the line protocol described for the
// networked SQL front-end: one TCP connection per client, one
// statement per read, one response per write.
package server

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/geeqodb/geeqodb/pkg/catalog"
	"github.com/geeqodb/geeqodb/pkg/dblog"
	"github.com/geeqodb/geeqodb/pkg/executor"
	"github.com/geeqodb/geeqodb/pkg/planner"
	"github.com/geeqodb/geeqodb/pkg/stats"
	"github.com/geeqodb/geeqodb/pkg/txn"
)

const maxStatementBytes = 4096

var log = dblog.WithComponent("server")

// Server accepts connections and dispatches each one's statements
// against a single shared catalog/executor.
type Server struct {
	addr     string
	cat      *catalog.Catalog
	exec     *executor.Executor
	planr    *planner.Planner
	txns     *txn.Manager
	statsCat *stats.Catalog

	ln   net.Listener
	wg   sync.WaitGroup
	quit chan struct{}
}

// New builds a server fronting cat on addr (host:port, defaulting to
// port 5252 per the line protocol's default listen port).
func New(addr string, cat *catalog.Catalog) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	statsCat := stats.NewCatalog()
	return &Server{
		addr:     addr,
		cat:      cat,
		exec:     executor.New(cat),
		planr:    planner.New(cat, cat.Indexes(), statsCat),
		txns:     txn.NewManager(),
		statsCat: statsCat,
		quit:     make(chan struct{}),
	}
}

// DefaultAddr is the line protocol's default listen address.
const DefaultAddr = ":5252"

// Start opens the listener and begins accepting connections in the
// background; it returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Info().Str("addr", s.addr).Msg("server listening")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for every accepted connection to
// end. A connection ends when its client closes it or a read or write
// on it fails; Stop does not close open connections itself.
func (s *Server) Stop() error {
	close(s.quit)
	if s.ln != nil {
		s.ln.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Errorf("accept failed", err)
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection serves one statement per read on conn, as the line
// protocol specifies: one in-flight request per connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReaderSize(conn, maxStatementBytes)

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			return
		}

		response := s.Dispatch(line)
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}
		if err != nil {
			return
		}
	}
}

// Dispatch runs one statement and formats its response line, the
// entry point both handleConnection and tests use.
func (s *Server) Dispatch(statement string) string {
	rs, msg, err := s.execute(statement)
	if err != nil {
		return fmt.Sprintf("ERROR: %s\n", errorKind(err))
	}
	return fmt.Sprintf("SUCCESS: %s. Rows: %d\n", msg, rowsAffected(rs))
}

func rowsAffected(rs *executor.ResultSet) int {
	if rs == nil {
		return 0
	}
	return rs.RowCount
}
