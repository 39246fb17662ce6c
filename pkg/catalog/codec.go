package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/geeqodb/geeqodb/pkg/types"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value tags for the type-tagged binary encoding used in WAL payloads.
// Grounded on the teacher's checkpoint key encoding; generalized here to
// cover the Null logical type the spec's data model adds.
const (
	tagNull    byte = 0
	tagInt     byte = 1
	tagVarchar byte = 2
	tagBool    byte = 3
	tagFloat   byte = 4
	tagDate    byte = 5
)

// encodeValue writes one column value with a leading type tag, the same
// shape the teacher uses for B-tree checkpoint keys.
func encodeValue(buf *bytes.Buffer, v types.Comparable) error {
	switch k := v.(type) {
	case nil:
		buf.WriteByte(tagNull)
	case types.NullKey:
		buf.WriteByte(tagNull)
	case types.IntKey:
		buf.WriteByte(tagInt)
		binary.Write(buf, binary.LittleEndian, int64(k))
	case types.VarcharKey:
		buf.WriteByte(tagVarchar)
		s := string(k)
		binary.Write(buf, binary.LittleEndian, uint16(len(s)))
		buf.WriteString(s)
	case types.BoolKey:
		buf.WriteByte(tagBool)
		var b uint8
		if k {
			b = 1
		}
		buf.WriteByte(b)
	case types.FloatKey:
		buf.WriteByte(tagFloat)
		binary.Write(buf, binary.LittleEndian, float64(k))
	case types.DateKey:
		buf.WriteByte(tagDate)
		binary.Write(buf, binary.LittleEndian, time.Time(k).UnixNano())
	default:
		return fmt.Errorf("catalog: unsupported value type %T", v)
	}
	return nil
}

func decodeValue(r *bytes.Reader) (types.Comparable, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNull:
		return types.NullKey{}, nil
	case tagInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return nil, err
		}
		return types.IntKey(i), nil
	case tagVarchar:
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		b := make([]byte, l)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		return types.VarcharKey(string(b)), nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return types.BoolKey(b == 1), nil
	case tagFloat:
		var f float64
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return nil, err
		}
		return types.FloatKey(f), nil
	case tagDate:
		var ts int64
		if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
			return nil, err
		}
		return types.DateKey(time.Unix(0, ts)), nil
	default:
		return nil, fmt.Errorf("catalog: unknown value tag %d", tag)
	}
}

// encodeMutation packs a table name, row-id and row tuple into a WAL
// payload for Insert/Update records.
func encodeMutation(table string, rowID uint64, row types.Row) ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint16(len(table)))
	buf.WriteString(table)
	binary.Write(buf, binary.LittleEndian, rowID)
	binary.Write(buf, binary.LittleEndian, uint16(len(row)))
	for _, v := range row {
		if err := encodeValue(buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeMutation(payload []byte) (table string, rowID uint64, row types.Row, err error) {
	r := bytes.NewReader(payload)
	var tableLen uint16
	if err = binary.Read(r, binary.LittleEndian, &tableLen); err != nil {
		return
	}
	tableBytes := make([]byte, tableLen)
	if _, err = io.ReadFull(r, tableBytes); err != nil {
		return
	}
	table = string(tableBytes)

	if err = binary.Read(r, binary.LittleEndian, &rowID); err != nil {
		return
	}

	var colCount uint16
	if err = binary.Read(r, binary.LittleEndian, &colCount); err != nil {
		return
	}
	row = make(types.Row, colCount)
	for i := range row {
		row[i], err = decodeValue(r)
		if err != nil {
			return
		}
	}
	return table, rowID, row, nil
}

// encodeDelete packs a table name and row-id for Delete records.
func encodeDelete(table string, rowID uint64) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint16(len(table)))
	buf.WriteString(table)
	binary.Write(buf, binary.LittleEndian, rowID)
	return buf.Bytes()
}

func decodeDelete(payload []byte) (table string, rowID uint64, err error) {
	r := bytes.NewReader(payload)
	var tableLen uint16
	if err = binary.Read(r, binary.LittleEndian, &tableLen); err != nil {
		return
	}
	tableBytes := make([]byte, tableLen)
	if _, err = io.ReadFull(r, tableBytes); err != nil {
		return
	}
	table = string(tableBytes)
	err = binary.Read(r, binary.LittleEndian, &rowID)
	return table, rowID, err
}

const (
	schemaOpCreate byte = 1
	schemaOpDrop   byte = 2
)

func encodeSchemaChange(op byte, table string, schema types.Schema) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(op)
	binary.Write(buf, binary.LittleEndian, uint16(len(table)))
	buf.WriteString(table)
	binary.Write(buf, binary.LittleEndian, uint16(len(schema.Columns)))
	for _, c := range schema.Columns {
		binary.Write(buf, binary.LittleEndian, uint16(len(c.Name)))
		buf.WriteString(c.Name)
		buf.WriteByte(byte(c.Type))
	}
	return buf.Bytes()
}

func decodeSchemaChange(payload []byte) (op byte, table string, schema types.Schema, err error) {
	r := bytes.NewReader(payload)
	op, err = r.ReadByte()
	if err != nil {
		return
	}
	var tableLen uint16
	if err = binary.Read(r, binary.LittleEndian, &tableLen); err != nil {
		return
	}
	tableBytes := make([]byte, tableLen)
	if _, err = io.ReadFull(r, tableBytes); err != nil {
		return
	}
	table = string(tableBytes)

	var colCount uint16
	if err = binary.Read(r, binary.LittleEndian, &colCount); err != nil {
		return
	}
	schema.Columns = make([]types.Column, colCount)
	for i := range schema.Columns {
		var nameLen uint16
		if err = binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return
		}
		nameBytes := make([]byte, nameLen)
		if _, err = io.ReadFull(r, nameBytes); err != nil {
			return
		}
		typeTag, tErr := r.ReadByte()
		if tErr != nil {
			err = tErr
			return
		}
		schema.Columns[i] = types.Column{Name: string(nameBytes), Type: types.LogicalType(typeTag)}
	}
	return op, table, schema, nil
}

// rowToBSON and bsonToRow are the heap's on-disk row encoding: a
// self-describing document keyed by column name, following the
// teacher's MarshalBson/UnmarshalBson pattern.
func rowToBSON(schema types.Schema, row types.Row) ([]byte, error) {
	doc := make(bson.D, 0, len(schema.Columns))
	for i, col := range schema.Columns {
		doc = append(doc, bson.E{Key: col.Name, Value: toBSONValue(row[i])})
	}
	return bson.Marshal(doc)
}

func bsonToRow(schema types.Schema, data []byte) (types.Row, error) {
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode row: %w", err)
	}
	values := make(map[string]any, len(doc))
	for _, e := range doc {
		values[e.Key] = e.Value
	}

	row := make(types.Row, len(schema.Columns))
	for i, col := range schema.Columns {
		row[i] = fromBSONValue(col.Type, values[col.Name])
	}
	return row, nil
}

func toBSONValue(v types.Comparable) any {
	switch k := v.(type) {
	case types.IntKey:
		return int64(k)
	case types.VarcharKey:
		return string(k)
	case types.BoolKey:
		return bool(k)
	case types.FloatKey:
		return float64(k)
	case types.DateKey:
		return time.Time(k)
	default:
		return nil
	}
}

func fromBSONValue(t types.LogicalType, v any) types.Comparable {
	if v == nil {
		return types.NullKey{}
	}
	switch t {
	case types.TypeInteger:
		switch n := v.(type) {
		case int64:
			return types.IntKey(n)
		case int32:
			return types.IntKey(int64(n))
		}
	case types.TypeText:
		if s, ok := v.(string); ok {
			return types.VarcharKey(s)
		}
	case types.TypeBoolean:
		if b, ok := v.(bool); ok {
			return types.BoolKey(b)
		}
	case types.TypeReal:
		switch n := v.(type) {
		case float64:
			return types.FloatKey(n)
		case float32:
			return types.FloatKey(float64(n))
		}
	}
	return types.NullKey{}
}
