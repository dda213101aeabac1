package auth

import (
	"context"
	"sync"
	"time"
)

// CodeStore 保存進行中的驗證碼 (只存 bcrypt hash) 與錯誤次數
type CodeStore interface {
	// Save 儲存新的驗證碼並重設錯誤次數
	Save(ctx context.Context, mobile, hash string, ttl time.Duration) error
	// Get 取得驗證碼 hash；不存在或過期時回傳 ErrCodeExpired
	Get(ctx context.Context, mobile string) (string, error)
	// IncrAttempts 錯誤次數 +1 並回傳累計值
	IncrAttempts(ctx context.Context, mobile string) (int, error)
	// Delete 移除驗證碼與錯誤次數
	Delete(ctx context.Context, mobile string) error
}

type memoryChallenge struct {
	hash      string
	attempts  int
	expiresAt time.Time
}

// MemoryCodeStore 單一程序使用的 CodeStore
type MemoryCodeStore struct {
	mu         sync.Mutex
	challenges map[string]*memoryChallenge
	now        func() time.Time
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{
		challenges: make(map[string]*memoryChallenge),
		now:        time.Now,
	}
}

func (s *MemoryCodeStore) Save(ctx context.Context, mobile, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[mobile] = &memoryChallenge{hash: hash, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(ctx context.Context, mobile string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.live(mobile)
	if err != nil {
		return "", err
	}
	return c.hash, nil
}

func (s *MemoryCodeStore) IncrAttempts(ctx context.Context, mobile string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.live(mobile)
	if err != nil {
		return 0, err
	}
	c.attempts++
	return c.attempts, nil
}

func (s *MemoryCodeStore) Delete(ctx context.Context, mobile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, mobile)
	return nil
}

// live 取得未過期的驗證；過期的順便清掉
func (s *MemoryCodeStore) live(mobile string) (*memoryChallenge, error) {
	c, ok := s.challenges[mobile]
	if !ok {
		return nil, ErrCodeExpired
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.challenges, mobile)
		return nil, ErrCodeExpired
	}
	return c, nil
}

var _ CodeStore = (*MemoryCodeStore)(nil)
