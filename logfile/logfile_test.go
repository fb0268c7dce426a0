package logfile

import (
	"encoding/json"
	"testing"

	"github.com/goatplatform/goatdb/backend"
)

// rec builds a Record from literal JSON.
func rec(t *testing.T, raw string) Record {
	t.Helper()
	r, err := DecodeRecord([]byte(raw))
	if err != nil {
		t.Fatalf("bad record %q: %v", raw, err)
	}
	return r
}

// scanAll drains a fresh cursor and returns every record.
func scanAll(t *testing.T, l *Log) []Record {
	t.Helper()
	c, err := l.StartCursor()
	if err != nil {
		t.Fatalf("start cursor: %v", err)
	}
	var all []Record
	for {
		records, done, err := c.Scan()
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		all = append(all, records...)
		if done {
			return all
		}
	}
}

// assertIDs checks the scanned id sequence.
func assertIDs(t *testing.T, records []Record, want ...string) {
	t.Helper()
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, id := range want {
		if records[i].ID != id {
			t.Errorf("record %d: id %q, want %q", i, records[i].ID, id)
		}
	}
}

// fileLength reopens the raw file and probes its length via seek-to-end.
func fileLength(t *testing.T, b backend.Backend, path string) int64 {
	t.Helper()
	f, err := b.Open(path, false)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	defer f.Close()
	n, err := f.Seek(0, backend.SeekEnd)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// writeRaw drops exact bytes into a file, bypassing the log layer.
func writeRaw(t *testing.T, b backend.Backend, path string, data string) {
	t.Helper()
	f, err := b.Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Write([]byte(data)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestRoundTrip appends two records, reopens and scans them back in
// insertion order.
func TestRoundTrip(t *testing.T) {
	b := backend.NewSandbox()
	l, err := Open(b, "db/simple.jsonlog", true, Options{})
	if err != nil {
		t.Fatal(err)
	}
	err = l.Append([]Record{rec(t, `{"id":"a","v":1}`), rec(t, `{"id":"b","v":2}`)})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l, err = Open(b, "db/simple.jsonlog", true, Options{})
	if err != nil {
		t.Fatal(err)
	}
	records := scanAll(t, l)
	assertIDs(t, records, "a", "b")
	var payload struct {
		V int `json:"v"`
	}
	if err := json.Unmarshal(records[1].Raw, &payload); err != nil || payload.V != 2 {
		t.Errorf("payload lost: %s (%v)", records[1].Raw, err)
	}
	l.Close()
}

// TestFraming checks the exact batch framing bytes, including the leading
// resynchronization newline.
func TestFraming(t *testing.T) {
	b := backend.NewSandbox()
	l, _ := Open(b, "f.jsonlog", true, Options{})
	if err := l.Append([]Record{rec(t, `{"id":"a"}`), rec(t, `{"id":"b"}`)}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	f, _ := b.Open("f.jsonlog", false)
	defer f.Close()
	buf := make([]byte, 64)
	n, _ := f.Read(buf)
	want := "\n{\"id\":\"a\"}\n\n{\"id\":\"b\"}\n"
	if string(buf[:n]) != want {
		t.Errorf("framing: %q, want %q", buf[:n], want)
	}
}

// TestDedup verifies id-based deduplication across batches, within a
// batch and across reopen.
func TestDedup(t *testing.T) {
	b := backend.NewSandbox()
	l, _ := Open(b, "dedup.jsonlog", true, Options{})
	if err := l.Append([]Record{rec(t, `{"id":"a","v":1}`)}); err != nil {
		t.Fatal(err)
	}
	if err := l.Flush(); err != nil {
		t.Fatal(err)
	}
	// a is dropped, b survives
	if err := l.Append([]Record{rec(t, `{"id":"a","v":2}`), rec(t, `{"id":"b","v":3}`)}); err != nil {
		t.Fatal(err)
	}
	// duplicate inside one batch: first wins
	if err := l.Append([]Record{rec(t, `{"id":"c","v":4}`), rec(t, `{"id":"c","v":5}`)}); err != nil {
		t.Fatal(err)
	}
	l.Flush()
	l.Close()

	l, _ = Open(b, "dedup.jsonlog", true, Options{})
	assertIDs(t, scanAll(t, l), "a", "b", "c")
	l.Close()
	length := fileLength(t, b, "dedup.jsonlog")

	// re-appending any persisted subset is a no-op
	l, _ = Open(b, "dedup.jsonlog", true, Options{})
	if err := l.Append([]Record{rec(t, `{"id":"b","v":9}`), rec(t, `{"id":"c","v":9}`)}); err != nil {
		t.Fatal(err)
	}
	l.Close()
	if got := fileLength(t, b, "dedup.jsonlog"); got != length {
		t.Errorf("no-op append changed length %d -> %d", length, got)
	}
}

// TestCrashMidFrame recovers a file torn in the middle of its last frame:
// the partial record disappears and the file shrinks to the good prefix.
func TestCrashMidFrame(t *testing.T) {
	b := backend.NewSandbox()
	writeRaw(t, b, "crash.jsonlog", "{\"id\":\"a\"}\n{\"id\":\"b")

	l, _ := Open(b, "crash.jsonlog", true, Options{})
	assertIDs(t, scanAll(t, l), "a")
	l.Close()

	want := int64(len(`{"id":"a"}`) + 1)
	if got := fileLength(t, b, "crash.jsonlog"); got != want {
		t.Errorf("file length after recovery = %d, want %d", got, want)
	}
}

// TestCorruptTail recovers from a complete but unparseable final frame.
func TestCorruptTail(t *testing.T) {
	b := backend.NewSandbox()
	writeRaw(t, b, "corrupt.jsonlog", "{\"id\":\"a\"}\n{\"id\":\"b\"}\nnot json at all\n")

	l, _ := Open(b, "corrupt.jsonlog", true, Options{})
	assertIDs(t, scanAll(t, l), "a", "b")
	l.Close()

	want := int64(len(`{"id":"a"}`) + 1 + len(`{"id":"b"}`) + 1)
	if got := fileLength(t, b, "corrupt.jsonlog"); got != want {
		t.Errorf("file length after recovery = %d, want %d", got, want)
	}
}

// TestReadOnlyKeepsTail verifies a read-only scan stops at the corruption
// without touching the file.
func TestReadOnlyKeepsTail(t *testing.T) {
	b := backend.NewSandbox()
	data := "{\"id\":\"a\"}\n{\"id\":\"b"
	writeRaw(t, b, "ro.jsonlog", data)

	l, err := Open(b, "ro.jsonlog", false, Options{})
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, scanAll(t, l), "a")
	l.Close()
	if got := fileLength(t, b, "ro.jsonlog"); got != int64(len(data)) {
		t.Errorf("read-only scan modified the file: length %d", got)
	}
}

// TestEmptyFrames verifies arbitrary newline runs between frames are
// skipped.
func TestEmptyFrames(t *testing.T) {
	b := backend.NewSandbox()
	writeRaw(t, b, "gaps.jsonlog", "\n\n\n{\"id\":\"a\"}\n\n\n\n{\"id\":\"b\"}\n\n")

	l, _ := Open(b, "gaps.jsonlog", true, Options{})
	assertIDs(t, scanAll(t, l), "a", "b")
	l.Close()
}

// TestAppendWithoutPriorScan verifies the internal drive-to-end scan
// absorbs a damaged tail before the first append.
func TestAppendWithoutPriorScan(t *testing.T) {
	b := backend.NewSandbox()
	writeRaw(t, b, "tail.jsonlog", "{\"id\":\"a\"}\n{\"id\":\"b")

	l, _ := Open(b, "tail.jsonlog", true, Options{})
	// no explicit scan; append must truncate the torn frame first and
	// still deduplicate against the surviving prefix
	if err := l.Append([]Record{rec(t, `{"id":"a"}`), rec(t, `{"id":"c"}`)}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, _ = Open(b, "tail.jsonlog", false, Options{})
	assertIDs(t, scanAll(t, l), "a", "c")
	l.Close()
}

// TestSmallBatches verifies batching and cursor monotonicity with a tiny
// batch size and read buffer.
func TestSmallBatches(t *testing.T) {
	b := backend.NewSandbox()
	opts := Options{ReadBufferSize: 16, ScanBatchSize: 3}
	l, _ := Open(b, "batch.jsonlog", true, opts)
	var batch []Record
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, id := range ids {
		batch = append(batch, rec(t, `{"id":"`+id+`"}`))
	}
	if err := l.Append(batch); err != nil {
		t.Fatal(err)
	}

	c, err := l.StartCursor()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	lastOffset := int64(0)
	for {
		records, done, err := c.Scan()
		if err != nil {
			t.Fatal(err)
		}
		if len(records) > opts.ScanBatchSize {
			t.Fatalf("batch of %d exceeds cap %d", len(records), opts.ScanBatchSize)
		}
		if off := c.LastGoodOffset(); off < lastOffset {
			t.Fatalf("cursor moved backwards: %d -> %d", lastOffset, off)
		} else {
			lastOffset = off
		}
		for _, r := range records {
			got = append(got, r.ID)
		}
		if done {
			break
		}
	}
	if len(got) != len(ids) {
		t.Fatalf("scanned %d ids, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("position %d: %q, want %q", i, got[i], ids[i])
		}
	}
	l.Close()
}

// TestTwoCursors verifies independent cursors over the same handle both
// see the full log, interleaved.
func TestTwoCursors(t *testing.T) {
	b := backend.NewSandbox()
	opts := Options{ScanBatchSize: 2}
	l, _ := Open(b, "two.jsonlog", true, opts)
	var batch []Record
	for _, id := range []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		batch = append(batch, rec(t, `{"id":"`+id+`"}`))
	}
	if err := l.Append(batch); err != nil {
		t.Fatal(err)
	}

	c1, _ := l.StartCursor()
	c2, _ := l.StartCursor()
	// alternate batches between the two cursors
	var n1, n2 int
	done1, done2 := false, false
	for !done1 || !done2 {
		if !done1 {
			records, done, err := c1.Scan()
			if err != nil {
				t.Fatal(err)
			}
			n1 += len(records)
			done1 = done
		}
		if !done2 {
			records, done, err := c2.Scan()
			if err != nil {
				t.Fatal(err)
			}
			n2 += len(records)
			done2 = done
		}
	}
	if n1 != 10 || n2 != 10 {
		t.Errorf("cursors saw %d and %d records, want 10 each", n1, n2)
	}
	l.Close()
}

// TestClosedHandle verifies every operation on a closed handle fails
// explicitly.
func TestClosedHandle(t *testing.T) {
	b := backend.NewSandbox()
	l, _ := Open(b, "closed.jsonlog", true, Options{})
	c, _ := l.StartCursor()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if err := l.Append([]Record{rec(t, `{"id":"x"}`)}); err != ErrLogClosed {
		t.Errorf("append: %v, want ErrLogClosed", err)
	}
	if err := l.Flush(); err != ErrLogClosed {
		t.Errorf("flush: %v, want ErrLogClosed", err)
	}
	if _, _, err := c.Scan(); err != ErrLogClosed {
		t.Errorf("scan: %v, want ErrLogClosed", err)
	}
	if _, err := l.StartCursor(); err != ErrLogClosed {
		t.Errorf("cursor: %v, want ErrLogClosed", err)
	}
	// double close stays quiet
	if err := l.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// TestReadOnlyAppend verifies appends on read-only handles are rejected.
func TestReadOnlyAppend(t *testing.T) {
	b := backend.NewSandbox()
	writeRaw(t, b, "roa.jsonlog", "{\"id\":\"a\"}\n")
	l, err := Open(b, "roa.jsonlog", false, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if err := l.Append([]Record{rec(t, `{"id":"b"}`)}); err != ErrWriteNotPermitted {
		t.Errorf("append: %v, want ErrWriteNotPermitted", err)
	}
}

// TestPartialWriteBackend runs a full round trip over a backend that
// accepts at most 7 bytes per write call.
func TestPartialWriteBackend(t *testing.T) {
	b := backend.NewSandbox()
	b.MaxWrite = 7
	l, _ := Open(b, "partial.jsonlog", true, Options{})
	if err := l.Append([]Record{rec(t, `{"id":"x","t":"abcdefghij"}`)}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, _ = Open(b, "partial.jsonlog", false, Options{})
	records := scanAll(t, l)
	assertIDs(t, records, "x")
	if string(records[0].Raw) != `{"id":"x","t":"abcdefghij"}` {
		t.Errorf("payload: %s", records[0].Raw)
	}
	l.Close()
}

// TestRecordWithoutID verifies records lacking a string id are persisted
// but never deduplicated.
func TestRecordWithoutID(t *testing.T) {
	b := backend.NewSandbox()
	l, _ := Open(b, "noid.jsonlog", true, Options{})
	if err := l.Append([]Record{rec(t, `{"n":1}`), rec(t, `{"n":2}`), rec(t, `{"id":7,"n":3}`)}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, _ = Open(b, "noid.jsonlog", false, Options{})
	records := scanAll(t, l)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	l.Close()
}

// TestNewRecord verifies marshalling arbitrary values extracts the id.
func TestNewRecord(t *testing.T) {
	r, err := NewRecord(map[string]any{"id": "k1", "v": 42})
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "k1" {
		t.Errorf("id = %q", r.ID)
	}
	if _, err := DecodeRecord([]byte(`[1,2,3]`)); err == nil {
		t.Error("array accepted as record")
	}
	if _, err := DecodeRecord([]byte(`{"id":`)); err == nil {
		t.Error("truncated JSON accepted as record")
	}
}
