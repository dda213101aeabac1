package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func TestWAL_WriteThenReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := NewWAL(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := w.Write(record{Seq: i, Note: "n"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w, err = NewWAL(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w.Close()

	var got []int
	err = w.ReadAll(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("records got=%v want=[1 2 3]", got)
	}
}

func TestWAL_TruncatesTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	content := `{"seq":1,"note":"a"}` + "\n" + `{"seq":2,"no`
	if err := os.WriteFile(path, []byte(content), FileModePrivate); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w, err := NewWAL(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	count := 0
	if err := w.ReadAll(func(json.RawMessage) error { count++; return nil }); err != nil {
		t.Fatalf("read all: %v", err)
	}
	if count != 1 {
		t.Fatalf("records got=%d want=1", count)
	}

	// 截斷後可繼續追加
	if err := w.Write(record{Seq: 3}); err != nil {
		t.Fatalf("write after truncate: %v", err)
	}
	count = 0
	if err := w.ReadAll(func(json.RawMessage) error { count++; return nil }); err != nil {
		t.Fatalf("read all after truncate: %v", err)
	}
	if count != 2 {
		t.Fatalf("records after append got=%d want=2", count)
	}
	w.Close()
}

func TestWAL_RollbackDropsFailedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := NewWAL(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()
	if err := w.Write(record{Seq: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := w.file.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	// 寫到一半失敗 (例如磁碟已滿)
	if _, err := w.file.Write([]byte(`{"seq":2,"no`)); err != nil {
		t.Fatalf("partial write: %v", err)
	}
	cause := errors.New("no space left on device")
	if err := w.rollback(info.Size(), cause); !errors.Is(err, cause) {
		t.Fatalf("rollback err got=%v want=%v", err, cause)
	}

	if err := w.Write(record{Seq: 3}); err != nil {
		t.Fatalf("write after rollback: %v", err)
	}
	var got []int
	err = w.ReadAll(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("records got=%v want=[1 3]", got)
	}
}

func TestWAL_RefusesWritesWhenBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")
	w, err := NewWAL(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.file.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	// 檔案已關閉：截斷無法還原
	if err := w.rollback(0, errors.New("sync failed")); !errors.Is(err, ErrBroken) {
		t.Fatalf("rollback err got=%v want ErrBroken", err)
	}
	if err := w.Write(record{Seq: 1}); !errors.Is(err, ErrBroken) {
		t.Fatalf("write err got=%v want ErrBroken", err)
	}
}
