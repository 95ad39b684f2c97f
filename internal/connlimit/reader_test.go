package connlimit

import (
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
)

// step is one scripted Read result for a fakeFile.
type step struct {
	data string
	err  error
}

// fakeFile plays back a script of read results and counts Close calls.
type fakeFile struct {
	steps  []step
	closed int
}

func (f *fakeFile) Read(p []byte) (int, error) {
	if len(f.steps) == 0 {
		return 0, io.EOF
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	n := copy(p, s.data)
	return n, s.err
}

func (f *fakeFile) Close() error {
	f.closed++
	return nil
}

func newTestChecker(f *fakeFile, openErr error) *Checker {
	c := New(Config{
		Directory:  func() string { return "/limits" },
		Principals: staticDirectory{"alice": "alice"},
		Counter:    staticCounter(0),
	})
	c.open = func(path string) (limitFile, error) {
		if openErr != nil {
			return nil, openErr
		}
		return f, nil
	}
	return c
}

func TestReadLimit(t *testing.T) {
	t.Run("single read then EOF", func(t *testing.T) {
		f := &fakeFile{steps: []step{{data: "10\n"}}}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if string(got) != "10\n" {
			t.Errorf("content = %q, want %q", got, "10\n")
		}
		if f.closed != 1 {
			t.Errorf("file closed %d times, want 1", f.closed)
		}
	})

	t.Run("content split across reads", func(t *testing.T) {
		f := &fakeFile{steps: []step{{data: "1"}, {data: "0"}}}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if string(got) != "10" {
			t.Errorf("content = %q, want %q", got, "10")
		}
	})

	t.Run("data delivered together with EOF", func(t *testing.T) {
		f := &fakeFile{steps: []step{{data: "25", err: io.EOF}}}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if string(got) != "25" {
			t.Errorf("content = %q, want %q", got, "25")
		}
	})

	t.Run("retries transient interruptions", func(t *testing.T) {
		f := &fakeFile{steps: []step{
			{err: syscall.EAGAIN},
			{data: "4", err: syscall.EINTR},
			{err: syscall.EAGAIN},
			{data: "2"},
		}}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if string(got) != "42" {
			t.Errorf("content = %q, want %q", got, "42")
		}
		if f.closed != 1 {
			t.Errorf("file closed %d times, want 1", f.closed)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		f := &fakeFile{}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if len(got) != 0 {
			t.Errorf("content = %q, want empty", got)
		}
	})

	t.Run("buffer fills before EOF", func(t *testing.T) {
		f := &fakeFile{steps: []step{
			{data: strings.Repeat("9", limitBufSize)},
			{data: "9"},
		}}
		c := newTestChecker(f, nil)

		_, status := c.readLimit("/limits/alice")
		if status != readTooLarge {
			t.Fatalf("status = %v, want readTooLarge", status)
		}
		if f.closed != 1 {
			t.Errorf("file closed %d times, want 1", f.closed)
		}
	})

	t.Run("content at exactly the bound is too large", func(t *testing.T) {
		// End of file is never observed inside the bound, so the
		// content cannot be distinguished from a truncated prefix.
		f := &fakeFile{steps: []step{{data: strings.Repeat("1", limitBufSize)}}}
		c := newTestChecker(f, nil)

		_, status := c.readLimit("/limits/alice")
		if status != readTooLarge {
			t.Fatalf("status = %v, want readTooLarge", status)
		}
	})

	t.Run("content one under the bound is fine", func(t *testing.T) {
		f := &fakeFile{steps: []step{{data: strings.Repeat("1", limitBufSize-1)}}}
		c := newTestChecker(f, nil)

		got, status := c.readLimit("/limits/alice")
		if status != readOK {
			t.Fatalf("status = %v, want readOK", status)
		}
		if len(got) != limitBufSize-1 {
			t.Errorf("content length = %d, want %d", len(got), limitBufSize-1)
		}
	})

	t.Run("hard read error", func(t *testing.T) {
		f := &fakeFile{steps: []step{{data: "1"}, {err: syscall.EIO}}}
		c := newTestChecker(f, nil)

		_, status := c.readLimit("/limits/alice")
		if status != readFailed {
			t.Fatalf("status = %v, want readFailed", status)
		}
		if f.closed != 1 {
			t.Errorf("file closed %d times, want 1", f.closed)
		}
	})

	t.Run("open failure", func(t *testing.T) {
		c := newTestChecker(nil, errors.New("permission denied"))

		_, status := c.readLimit("/limits/alice")
		if status != readOpenFailed {
			t.Fatalf("status = %v, want readOpenFailed", status)
		}
	})
}

func TestReadLimitRealFile(t *testing.T) {
	dir := t.TempDir()
	writeLimitFile(t, dir, "alice", "10\n")

	c := New(Config{
		Directory:  func() string { return dir },
		Principals: staticDirectory{"alice": "alice"},
		Counter:    staticCounter(0),
	})

	got, status := c.readLimit(LimitPath(dir, "alice"))
	if status != readOK {
		t.Fatalf("status = %v, want readOK", status)
	}
	if string(got) != "10\n" {
		t.Errorf("content = %q, want %q", got, "10\n")
	}

	_, status = c.readLimit(LimitPath(dir, "missing"))
	if status != readOpenFailed {
		t.Errorf("status for missing file = %v, want readOpenFailed", status)
	}
}
