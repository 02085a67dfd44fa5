package bagsource

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/gaby/logstream/internal/msgiter"
)

// writeField appends one length-prefixed "name=value" field to buf.
func writeField(buf *bytes.Buffer, name string, value []byte) {
	field := append([]byte(name+"="), value...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(field)))
	buf.Write(lenBuf[:])
	buf.Write(field)
}

// writeRecord writes one full record: header-length, header fields, data-length, data.
func writeRecord(buf *bytes.Buffer, header *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(header.Len()))
	buf.Write(lenBuf[:])
	buf.Write(header.Bytes())
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func int32Bytes(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func timeBytes(sec int32, nsec uint32) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(sec))
	binary.LittleEndian.PutUint32(b[4:8], nsec)
	return b[:]
}

func buildTestBag(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(bagMagic)

	// bag header record (op=3), padded data ignored by the reader.
	{
		var header bytes.Buffer
		writeField(&header, "op", []byte{opBagHeader})
		writeField(&header, "index_pos", timeBytes(0, 0))
		writeField(&header, "conn_count", int32Bytes(1))
		writeField(&header, "chunk_count", int32Bytes(0))
		writeRecord(&buf, &header, nil)
	}

	// connection record (op=7) for "/chatter" : std_msgs/String.
	{
		var header bytes.Buffer
		writeField(&header, "op", []byte{opConnection})
		writeField(&header, "conn", int32Bytes(0))
		writeField(&header, "topic", []byte("/chatter"))

		var connData bytes.Buffer
		writeField(&connData, "topic", []byte("/chatter"))
		writeField(&connData, "type", []byte("std_msgs/String"))
		writeField(&connData, "md5sum", []byte("992ce8a1687cec8c8bd883ec73ca41d1"))
		writeField(&connData, "message_definition", []byte("string data\n"))
		writeField(&connData, "callerid", []byte("/talker"))

		writeRecord(&buf, &header, connData.Bytes())
	}

	// message record (op=2): a ROS1-serialized std_msgs/String{data:"hello"}.
	{
		var header bytes.Buffer
		writeField(&header, "op", []byte{opMessageData})
		writeField(&header, "conn", int32Bytes(0))
		writeField(&header, "time", timeBytes(100, 0))

		var msgData bytes.Buffer
		msgData.Write(int32Bytes(5))
		msgData.WriteString("hello")

		writeRecord(&buf, &header, msgData.Bytes())
	}

	return buf.Bytes()
}

func TestBagInitializeAndIterate(t *testing.T) {
	data := buildTestBag(t)
	b := New()
	init, err := b.Initialize(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(init.Topics) != 1 || init.Topics[0].Name != "/chatter" {
		t.Fatalf("unexpected topics: %+v", init.Topics)
	}
	if init.Topics[0].SchemaName != "std_msgs/String" {
		t.Fatalf("unexpected schema name: %q", init.Topics[0].SchemaName)
	}

	it, err := b.MessageIterator(msgiter.MessageIteratorArgs{Topics: []string{"/chatter"}})
	if err != nil {
		t.Fatalf("message iterator: %v", err)
	}
	res, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected one message, got ok=%v err=%v", ok, err)
	}
	if res.Message.Topic != "/chatter" {
		t.Fatalf("unexpected topic: %q", res.Message.Topic)
	}
	msg, ok := res.Message.Message.(map[string]any)
	if !ok || msg["data"] != "hello" {
		t.Fatalf("unexpected decoded message: %+v", res.Message.Message)
	}

	if _, ok, err := it.Next(context.Background()); ok || err != nil {
		t.Fatalf("expected iterator to be exhausted, got ok=%v err=%v", ok, err)
	}
}

func TestBagMissingSchemaNameQuarantinesConnection(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(bagMagic)

	var header bytes.Buffer
	writeField(&header, "op", []byte{opConnection})
	writeField(&header, "conn", int32Bytes(0))
	writeField(&header, "topic", []byte("/no_schema"))
	var connData bytes.Buffer
	writeField(&connData, "topic", []byte("/no_schema"))
	writeField(&connData, "type", []byte(""))
	writeRecord(&buf, &header, connData.Bytes())

	b := New()
	init, err := b.Initialize(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("initialize should not fail on a schema-less connection: %v", err)
	}
	if !b.faulty[0] {
		t.Fatalf("expected connection 0 to be quarantined as faulty")
	}
	if len(init.Topics) != 1 {
		t.Fatalf("expected the topic to still be reported, got %+v", init.Topics)
	}
}
