package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀)
	FileModeDefault fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 帳本內容含客戶電話，預設使用此權限
	FileModePrivate fs.FileMode = 0600
)

// ErrBroken 寫入失敗且無法還原到寫入前的狀態，WAL 不再接受寫入
var ErrBroken = errors.New("wal is broken")

// WAL 以 JSON Lines 格式追加寫入的日誌檔
// 每筆紀錄寫入後立即 fsync，回傳成功即代表已落地
// 回傳失敗時檔案會截斷回寫入前的長度，不會留下半筆或未確認的紀錄
type WAL struct {
	file *os.File
	mu   sync.Mutex
	// broken: 截斷失敗的原因；非 nil 時拒絕後續寫入
	broken error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR 讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	return &WAL{file: file}, nil
}

// Write 寫入一筆資料並刷入硬碟
//
// 參數:
//
//	v: 可序列化為 JSON 的紀錄
//
// 回傳:
//
//	error: 序列化、寫入或 fsync 失敗；失敗時檔案已還原或 WAL 標記為 ErrBroken
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken != nil {
		return fmt.Errorf("%w: %v", ErrBroken, w.broken)
	}

	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	offset := info.Size()
	if _, err := w.file.Write(line); err != nil {
		return w.rollback(offset, err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(offset, err)
	}
	return nil
}

// rollback 截斷回寫入前的長度；截斷也失敗時標記 WAL 不可用
func (w *WAL) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		w.broken = fmt.Errorf("truncate to %d after %v: %w", offset, cause, err)
		log.Printf("[wal] %v", w.broken)
		return fmt.Errorf("%w: %v", ErrBroken, w.broken)
	}
	log.Printf("[wal] write failed, truncated back to offset %d: %v", offset, cause)
	return cause
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 依寫入順序讀取所有資料
// callback 每次收到一筆原始 JSON，避免一次將所有資料載入記憶體
//
// 檔案尾端若有寫到一半的紀錄 (程序在寫入途中被中止)，
// 該筆紀錄一定沒有回傳成功給呼叫端，直接截斷丟棄
func (w *WAL) ReadAll(callback func(raw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				log.Printf("[wal] truncating torn record at offset %d", good)
				return w.file.Truncate(good)
			}
			return fmt.Errorf("decode wal record at offset %d: %w", good, err)
		}
		if err := callback(raw); err != nil {
			return err
		}
		good = decoder.InputOffset()
	}
}
