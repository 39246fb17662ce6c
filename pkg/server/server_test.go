package server

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/geeqodb/geeqodb/pkg/catalog"
)

func openServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	return New("127.0.0.1:0", cat)
}

func TestCreateInsertSelectRoundTrip(t *testing.T) {
	s := openServer(t)

	resp := s.Dispatch("CREATE TABLE people (id INT, name TEXT)")
	if !strings.HasPrefix(resp, "SUCCESS") {
		t.Fatalf("expected success creating table, got %q", resp)
	}

	resp = s.Dispatch("INSERT INTO people VALUES (1, 'alice')")
	if !strings.HasPrefix(resp, "SUCCESS") {
		t.Fatalf("expected success inserting row, got %q", resp)
	}

	resp = s.Dispatch("SELECT * FROM people")
	if !strings.Contains(resp, "Rows: 1") {
		t.Fatalf("expected 1 row, got %q", resp)
	}
}

func TestSelectWithWhereFiltersRows(t *testing.T) {
	s := openServer(t)
	s.Dispatch("CREATE TABLE people (id INT, name TEXT)")
	s.Dispatch("INSERT INTO people VALUES (1, 'alice')")
	s.Dispatch("INSERT INTO people VALUES (2, 'bob')")

	resp := s.Dispatch("SELECT * FROM people WHERE id = 2")
	if !strings.Contains(resp, "Rows: 1") {
		t.Fatalf("expected 1 matching row, got %q", resp)
	}
}

func TestUnknownTableReturnsTableNotFound(t *testing.T) {
	s := openServer(t)
	resp := s.Dispatch("SELECT * FROM ghosts")
	if !strings.Contains(resp, "ERROR: TableNotFound") {
		t.Fatalf("expected TableNotFound, got %q", resp)
	}
}

func TestMalformedStatementReturnsInvalidArguments(t *testing.T) {
	s := openServer(t)
	resp := s.Dispatch("GARBAGE")
	if !strings.Contains(resp, "ERROR: InvalidArguments") {
		t.Fatalf("expected InvalidArguments, got %q", resp)
	}
}

func TestServeOverRealTCPConnection(t *testing.T) {
	s := openServer(t)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("CREATE TABLE widgets (id INT)\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, "SUCCESS") {
		t.Fatalf("expected success over TCP, got %q", line)
	}
}
