package worker

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/goatplatform/goatdb/backend"
	"github.com/goatplatform/goatdb/logfile"
)

// spawnSandbox starts an in-process host over a fresh sandbox backend.
func spawnSandbox(t *testing.T, opts logfile.Options) (*Client, *backend.SandboxBackend) {
	t.Helper()
	b := backend.NewSandbox()
	c := Spawn(b, opts)
	t.Cleanup(func() { c.Close() })
	return c, b
}

func raws(lines ...string) []json.RawMessage {
	result := make([]json.RawMessage, 0, len(lines))
	for _, l := range lines {
		result = append(result, json.RawMessage(l))
	}
	return result
}

func ids(t *testing.T, records []json.RawMessage) []string {
	t.Helper()
	var result []string
	for _, raw := range records {
		var probe struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			t.Fatalf("bad record %s: %v", raw, err)
		}
		result = append(result, probe.ID)
	}
	return result
}

// TestWorkerRoundTrip drives open, append, flush, close, reopen and scan
// through the message protocol.
func TestWorkerRoundTrip(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})

	handle, err := c.Open("db/log.jsonlog", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Append(handle, raws(`{"id":"a","v":1}`, `{"id":"b","v":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(handle); err != nil {
		t.Fatal(err)
	}
	if err := c.CloseHandle(handle); err != nil {
		t.Fatal(err)
	}

	handle, err = c.Open("db/log.jsonlog", true)
	if err != nil {
		t.Fatal(err)
	}
	cursor, err := c.Cursor(handle)
	if err != nil {
		t.Fatal(err)
	}
	records, err := c.ScanAll(cursor)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, records)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("scanned %v", got)
	}
}

// TestWorkerDedup verifies append deduplication across batches through
// the protocol.
func TestWorkerDedup(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})
	handle, _ := c.Open("dedup.jsonlog", true)
	if err := c.Append(handle, raws(`{"id":"a","v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(handle, raws(`{"id":"a","v":2}`, `{"id":"b","v":3}`)); err != nil {
		t.Fatal(err)
	}
	cursor, _ := c.Cursor(handle)
	records, err := c.ScanAll(cursor)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, records)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("scanned %v", got)
	}
	var v struct {
		V int `json:"v"`
	}
	json.Unmarshal(records[0], &v)
	if v.V != 1 {
		t.Errorf("duplicate overwrote the original: %s", records[0])
	}
}

// TestWorkerPipelinedCursors verifies two interleaved cursors over the
// same handle each observe the whole log.
func TestWorkerPipelinedCursors(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{ScanBatchSize: 3})
	handle, _ := c.Open("pipe.jsonlog", true)
	var batch []json.RawMessage
	for _, id := range []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		batch = append(batch, json.RawMessage(`{"id":"`+id+`"}`))
	}
	if err := c.Append(handle, batch); err != nil {
		t.Fatal(err)
	}

	cur1, _ := c.Cursor(handle)
	cur2, _ := c.Cursor(handle)
	var n1, n2 int
	done1, done2 := false, false
	for !done1 || !done2 {
		if !done1 {
			records, done, err := c.Scan(cur1)
			if err != nil {
				t.Fatal(err)
			}
			n1 += len(records)
			done1 = done
		}
		if !done2 {
			records, done, err := c.Scan(cur2)
			if err != nil {
				t.Fatal(err)
			}
			n2 += len(records)
			done2 = done
		}
	}
	if n1 != 10 || n2 != 10 {
		t.Errorf("cursors saw %d and %d records", n1, n2)
	}
	// a drained cursor keeps reporting done
	records, done, err := c.Scan(cur1)
	if err != nil || !done || len(records) != 0 {
		t.Errorf("drained cursor: %v records, done=%v, err=%v", len(records), done, err)
	}
}

// TestWorkerIsolation verifies a closed handle reports FileClosed while
// other handles stay usable.
func TestWorkerIsolation(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})
	h1, _ := c.Open("one.jsonlog", true)
	h2, _ := c.Open("two.jsonlog", true)
	cur1, _ := c.Cursor(h1)

	if err := c.CloseHandle(h1); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(h1, raws(`{"id":"x"}`)); !errors.Is(err, ErrFileClosed) {
		t.Errorf("append on closed: %v", err)
	}
	if _, _, err := c.Scan(cur1); !errors.Is(err, ErrFileClosed) {
		t.Errorf("scan on closed: %v", err)
	}
	if err := c.Flush(h1); !errors.Is(err, ErrFileClosed) {
		t.Errorf("flush on closed: %v", err)
	}
	if err := c.CloseHandle(h1); !errors.Is(err, ErrFileClosed) {
		t.Errorf("double close: %v", err)
	}

	// the sibling handle is untouched
	if err := c.Append(h2, raws(`{"id":"y"}`)); err != nil {
		t.Errorf("sibling handle broken: %v", err)
	}
}

// TestWorkerUnknownCommand verifies unknown message kinds produce a typed
// error response without killing the host.
func TestWorkerUnknownCommand(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})
	if _, err := c.Call(Request{Type: "frobnicate"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command: %v", err)
	}
	// host still alive
	if _, err := c.Open("after.jsonlog", true); err != nil {
		t.Errorf("host died after unknown command: %v", err)
	}
}

// TestWorkerMalformedMessage feeds junk bytes through a raw transport.
func TestWorkerMalformedMessage(t *testing.T) {
	local, remote := NewChannelPair()
	host := NewHost(backend.NewSandbox(), logfile.Options{})
	go host.Serve(remote)
	defer local.Close()

	if err := local.Send([]byte("this is not json")); err != nil {
		t.Fatal(err)
	}
	msg, err := local.Receive()
	if err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(msg, &resp); err != nil {
		t.Fatalf("host reply unparseable: %v", err)
	}
	if resp.Type != KindError || resp.Err != ErrKindUnknownCommand {
		t.Errorf("malformed message reply: %+v", resp)
	}
}

// TestWorkerTextFiles exercises the text convenience calls.
func TestWorkerTextFiles(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})

	if _, ok, err := c.ReadTextFile("missing.txt"); err != nil || ok {
		t.Errorf("missing file: ok=%v err=%v", ok, err)
	}
	ok, err := c.WriteTextFile("note.txt", "hello goat")
	if err != nil || !ok {
		t.Fatalf("write: ok=%v err=%v", ok, err)
	}
	text, ok, err := c.ReadTextFile("note.txt")
	if err != nil || !ok || text != "hello goat" {
		t.Errorf("read back: %q ok=%v err=%v", text, ok, err)
	}
	removed, err := c.Remove("note.txt")
	if err != nil || !removed {
		t.Errorf("remove: %v %v", removed, err)
	}
	removed, err = c.Remove("note.txt")
	if err != nil || removed {
		t.Errorf("remove absent: %v %v", removed, err)
	}
}

// TestWorkerReadOnlyAppend maps the write-permission error across the
// wire.
func TestWorkerReadOnlyAppend(t *testing.T) {
	c, _ := spawnSandbox(t, logfile.Options{})
	h, _ := c.Open("seed.jsonlog", true)
	c.Append(h, raws(`{"id":"a"}`))
	c.CloseHandle(h)

	ro, err := c.Open("seed.jsonlog", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Append(ro, raws(`{"id":"b"}`)); !errors.Is(err, logfile.ErrWriteNotPermitted) {
		t.Errorf("read-only append: %v", err)
	}
}

// TestPipeTransport runs the full protocol over newline-delimited JSON
// pipes, the child-process framing.
func TestPipeTransport(t *testing.T) {
	hostIn, clientOut := io.Pipe()
	clientIn, hostOut := io.Pipe()
	host := NewHost(backend.NewSandbox(), logfile.Options{})
	go host.Serve(NewPipeTransport(hostIn, hostOut))

	c := NewClient(NewPipeTransport(clientIn, clientOut))
	defer c.Close()

	handle, err := c.Open("piped.jsonlog", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Append(handle, raws(`{"id":"a"}`, `{"id":"b"}`)); err != nil {
		t.Fatal(err)
	}
	cursor, err := c.Cursor(handle)
	if err != nil {
		t.Fatal(err)
	}
	records, err := c.ScanAll(cursor)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, records)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("scanned %v", got)
	}
}
