package store

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/minio/highwayhash"
	"github.com/viant/bintly"

	"helpdesk/internal/domain"
)

var idKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// record is one chunk with its embedding as persisted by a backend.
type record struct {
	Seq      uint64
	ID       string
	Document domain.Document
	Vector   []float32
}

// recordID derives a stable id from the chunk's position and content.
// Duplicate chunks are legal, so the sequence number is part of the key.
func recordID(seq uint64, content string) (string, error) {
	h, err := highwayhash.New64(idKey)
	if err != nil {
		return "", err
	}
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], seq)
	if _, err = h.Write(prefix[:]); err != nil {
		return "", err
	}
	if _, err = h.Write([]byte(content)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

var writers = bintly.NewWriters()
var readers = bintly.NewReaders()

// encodeRecord writes the record in the bolt value format: id, content,
// metadata grouped by type, then the vector. Metadata must be normalized.
func encodeRecord(r *record) ([]byte, error) {
	w := writers.Get()
	defer writers.Put(w)

	w.String(r.ID)
	w.String(r.Document.Content)

	var ints, floats, strs, bools []string
	for k, v := range r.Document.Metadata {
		switch v.(type) {
		case int64:
			ints = append(ints, k)
		case float64:
			floats = append(floats, k)
		case string:
			strs = append(strs, k)
		case bool:
			bools = append(bools, k)
		default:
			return nil, fmt.Errorf("unsupported metadata type %T for key %q", v, k)
		}
	}
	for _, keys := range [][]string{ints, floats, strs, bools} {
		sort.Strings(keys)
	}

	md := r.Document.Metadata
	w.Int16(int16(len(ints)))
	for _, k := range ints {
		w.String(k)
		w.Int(int(md[k].(int64)))
	}
	w.Int16(int16(len(floats)))
	for _, k := range floats {
		w.String(k)
		w.Float64(md[k].(float64))
	}
	w.Int16(int16(len(strs)))
	for _, k := range strs {
		w.String(k)
		w.String(md[k].(string))
	}
	w.Int16(int16(len(bools)))
	for _, k := range bools {
		w.String(k)
		b := 0
		if md[k].(bool) {
			b = 1
		}
		w.Int(b)
	}

	w.Int(len(r.Vector))
	for _, x := range r.Vector {
		w.Float32(x)
	}
	return bytes.Clone(w.Bytes()), nil
}

func decodeRecord(seq uint64, data []byte) (*record, error) {
	rd := readers.Get()
	defer readers.Put(rd)
	if err := rd.FromBytes(data); err != nil {
		return nil, err
	}

	r := &record{Seq: seq}
	rd.String(&r.ID)
	rd.String(&r.Document.Content)
	md := make(map[string]any)

	var size int16
	rd.Int16(&size)
	for i := 0; i < int(size); i++ {
		var key string
		var value int
		rd.String(&key)
		rd.Int(&value)
		md[key] = int64(value)
	}
	rd.Int16(&size)
	for i := 0; i < int(size); i++ {
		var key string
		var value float64
		rd.String(&key)
		rd.Float64(&value)
		md[key] = value
	}
	rd.Int16(&size)
	for i := 0; i < int(size); i++ {
		var key, value string
		rd.String(&key)
		rd.String(&value)
		md[key] = value
	}
	rd.Int16(&size)
	for i := 0; i < int(size); i++ {
		var key string
		var value int
		rd.String(&key)
		rd.Int(&value)
		md[key] = value == 1
	}
	r.Document.Metadata = md

	var n int
	rd.Int(&n)
	if n < 0 || n > len(data) {
		return nil, fmt.Errorf("corrupt record %d: vector length %d", seq, n)
	}
	r.Vector = make([]float32, n)
	for i := range r.Vector {
		rd.Float32(&r.Vector[i])
	}
	return r, nil
}
