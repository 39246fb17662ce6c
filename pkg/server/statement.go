package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
	"github.com/geeqodb/geeqodb/pkg/executor"
	"github.com/geeqodb/geeqodb/pkg/planner"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// execute parses and runs one statement. The grammar accepted here is
// a deliberately small subset of SQL: CREATE TABLE, INSERT, SELECT and
// DELETE with an optional single equality WHERE clause, enough to
// drive the planner/executor pair end to end over the wire.
func (s *Server) execute(statement string) (*executor.ResultSet, string, error) {
	statement = strings.TrimSpace(statement)
	if len(statement) > maxStatementBytes {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "statement exceeds maximum size"}
	}
	statement = strings.TrimSuffix(statement, ";")
	if statement == "" {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "empty statement"}
	}

	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "empty statement"}
	}

	switch strings.ToUpper(fields[0]) {
	case "CREATE":
		return s.execCreateTable(statement)
	case "INSERT":
		return s.execInsert(statement)
	case "SELECT":
		return s.execSelect(statement)
	case "DELETE":
		return s.execDelete(statement)
	default:
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "unrecognized statement: " + fields[0]}
	}
}

// execCreateTable parses: CREATE TABLE <name> (<col> <type>, ...)
func (s *Server) execCreateTable(statement string) (*executor.ResultSet, string, error) {
	open := strings.Index(statement, "(")
	close := strings.LastIndex(statement, ")")
	if open < 0 || close < open {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed CREATE TABLE"}
	}
	header := strings.Fields(statement[:open])
	if len(header) < 3 {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed CREATE TABLE"}
	}
	table := header[2]

	var columns []types.Column
	for _, part := range strings.Split(statement[open+1:close], ",") {
		tokens := strings.Fields(strings.TrimSpace(part))
		if len(tokens) != 2 {
			return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed column definition: " + part}
		}
		t, err := parseLogicalType(tokens[1])
		if err != nil {
			return nil, "", err
		}
		columns = append(columns, types.Column{Name: tokens[0], Type: t})
	}

	rs, err := s.exec.CreateTable(table, types.Schema{Columns: columns})
	if err != nil {
		return nil, "", err
	}
	return rs, fmt.Sprintf("table %s created", table), nil
}

// execInsert parses: INSERT INTO <table> VALUES (<v1>, <v2>, ...)
func (s *Server) execInsert(statement string) (*executor.ResultSet, string, error) {
	fields := strings.Fields(statement)
	if len(fields) < 4 || strings.ToUpper(fields[1]) != "INTO" {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed INSERT"}
	}
	table := fields[2]

	open := strings.Index(statement, "(")
	close := strings.LastIndex(statement, ")")
	if open < 0 || close < open {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed INSERT VALUES"}
	}

	schema, err := s.cat.Table(table)
	if err != nil {
		return nil, "", err
	}

	row := make(types.Row, 0)
	for i, part := range strings.Split(statement[open+1:close], ",") {
		var colType types.LogicalType
		if i < len(schema.Columns) {
			colType = schema.Columns[i].Type
		}
		v, err := parseLiteral(strings.TrimSpace(part), colType)
		if err != nil {
			return nil, "", err
		}
		row = append(row, v)
	}

	rs, err := s.exec.Insert(table, row)
	if err != nil {
		return nil, "", err
	}
	return rs, fmt.Sprintf("inserted into %s", table), nil
}

// execSelect parses: SELECT * FROM <table> [WHERE <col> = <value>]
func (s *Server) execSelect(statement string) (*executor.ResultSet, string, error) {
	fields := strings.Fields(statement)
	fromIdx := indexOfUpper(fields, "FROM")
	if fromIdx < 0 || fromIdx+1 >= len(fields) {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed SELECT"}
	}
	table := fields[fromIdx+1]

	logical := planner.Scan(table)
	if whereIdx := indexOfUpper(fields, "WHERE"); whereIdx >= 0 && whereIdx+3 <= len(fields) {
		col := fields[whereIdx+1]
		schema, err := s.cat.Table(table)
		if err != nil {
			return nil, "", err
		}
		ci := schema.IndexOf(col)
		if ci < 0 {
			return nil, "", &dberrors.ColumnNotFoundError{Table: table, Column: col}
		}
		value, err := parseLiteral(fields[whereIdx+3], schema.Columns[ci].Type)
		if err != nil {
			return nil, "", err
		}
		logical = planner.Filter(logical, planner.Equal(col, value))
	}

	phys, err := s.planr.Plan(logical)
	if err != nil {
		return nil, "", err
	}
	rs, err := s.exec.Execute(phys, s.cat.CurrentPosition())
	if err != nil {
		return nil, "", err
	}
	return rs, fmt.Sprintf("selected from %s", table), nil
}

// execDelete parses: DELETE FROM <table> WHERE id = <rowid>
func (s *Server) execDelete(statement string) (*executor.ResultSet, string, error) {
	fields := strings.Fields(statement)
	fromIdx := indexOfUpper(fields, "FROM")
	whereIdx := indexOfUpper(fields, "WHERE")
	if fromIdx < 0 || fromIdx+1 >= len(fields) || whereIdx < 0 || whereIdx+3 > len(fields)-1 {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed DELETE"}
	}
	table := fields[fromIdx+1]
	rowIDStr := fields[whereIdx+3]
	rowID, err := strconv.ParseUint(rowIDStr, 10, 64)
	if err != nil {
		return nil, "", &dberrors.InvalidArgumentsError{Reason: "malformed row id: " + rowIDStr}
	}

	rs, err := s.exec.Delete(table, types.RowID(rowID))
	if err != nil {
		return nil, "", err
	}
	return rs, fmt.Sprintf("deleted from %s", table), nil
}

func indexOfUpper(fields []string, want string) int {
	for i, f := range fields {
		if strings.ToUpper(f) == want {
			return i
		}
	}
	return -1
}

func parseLogicalType(name string) (types.LogicalType, error) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER":
		return types.TypeInteger, nil
	case "REAL", "FLOAT", "DOUBLE":
		return types.TypeReal, nil
	case "TEXT", "VARCHAR", "STRING":
		return types.TypeText, nil
	case "BOOL", "BOOLEAN":
		return types.TypeBoolean, nil
	default:
		return 0, &dberrors.InvalidArgumentsError{Reason: "unknown column type: " + name}
	}
}

func parseLiteral(token string, hint types.LogicalType) (types.Comparable, error) {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "'") && strings.HasSuffix(token, "'") && len(token) >= 2 {
		return types.VarcharKey(token[1 : len(token)-1]), nil
	}
	switch hint {
	case types.TypeInteger:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, &dberrors.InvalidArgumentsError{Reason: "expected integer literal: " + token}
		}
		return types.IntKey(n), nil
	case types.TypeReal:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, &dberrors.InvalidArgumentsError{Reason: "expected real literal: " + token}
		}
		return types.FloatKey(f), nil
	case types.TypeBoolean:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return nil, &dberrors.InvalidArgumentsError{Reason: "expected boolean literal: " + token}
		}
		return types.BoolKey(b), nil
	case types.TypeText:
		return types.VarcharKey(token), nil
	default:
		if n, err := strconv.ParseInt(token, 10, 64); err == nil {
			return types.IntKey(n), nil
		}
		return types.VarcharKey(token), nil
	}
}

// errorKind maps a returned error to the stable, language-independent
// kind name the line protocol's ERROR response carries.
func errorKind(err error) string {
	switch err.(type) {
	case *dberrors.DatabaseClosedError:
		return "DatabaseClosed"
	case *dberrors.WALClosedError:
		return "WALClosed"
	case *dberrors.WALCorruptError:
		return "WALCorrupt"
	case *dberrors.TableAlreadyExistsError:
		return "TableAlreadyExists"
	case *dberrors.TableNotFoundError:
		return "TableNotFound"
	case *dberrors.ColumnNotFoundError:
		return "ColumnNotFound"
	case *dberrors.ColumnCountMismatchError:
		return "ColumnCountMismatch"
	case *dberrors.TypeMismatchError:
		return "TypeMismatch"
	case *dberrors.IndexAlreadyExistsError:
		return "IndexAlreadyExists"
	case *dberrors.IndexNotFoundError:
		return "IndexNotFound"
	case *dberrors.TransactionNotActiveError:
		return "TransactionNotActive"
	case *dberrors.SerializationConflictError:
		return "SerializationConflict"
	case *dberrors.BackupCorruptedError:
		return "BackupCorrupted"
	case *dberrors.BackupNotFoundError:
		return "BackupNotFound"
	case *dberrors.NotPrimaryError:
		return "NotPrimary"
	case *dberrors.InvalidStateTransitionError:
		return "InvalidStateTransition"
	case *dberrors.PrimaryAlreadyExistsError:
		return "PrimaryAlreadyExists"
	case *dberrors.ReplicaNotFoundError:
		return "ReplicaNotFound"
	case *dberrors.InvalidArgumentsError:
		return "InvalidArguments"
	case *dberrors.ConnectionClosedError:
		return "ConnectionClosed"
	case *dberrors.OperationTimedOutError:
		return "OperationTimedOut"
	default:
		return "InvalidArguments"
	}
}
