package telegram

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// minCommandInterval минимальная пауза между командами одного пользователя
const minCommandInterval = time.Second

// AuthManager управляет доступом к боту: allowlist и троттлинг команд
type AuthManager struct {
	mu        sync.Mutex
	allowlist map[int64]bool
	lastSeen  map[int64]time.Time
}

// NewAuthManager создает менеджер из списка ID через запятую.
// Пустой список разрешает доступ всем.
func NewAuthManager(allowedIDs string) *AuthManager {
	am := &AuthManager{
		allowlist: make(map[int64]bool),
		lastSeen:  make(map[int64]time.Time),
	}

	for _, idStr := range strings.Split(allowedIDs, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			am.allowlist[id] = true
		}
	}

	return am
}

// IsAllowed проверяет, разрешен ли доступ пользователю
func (am *AuthManager) IsAllowed(userID int64) bool {
	am.mu.Lock()
	defer am.mu.Unlock()

	if len(am.allowlist) == 0 {
		return true
	}
	return am.allowlist[userID]
}

// Throttle возвращает false, если пользователь шлет команды слишком часто
func (am *AuthManager) Throttle(userID int64) bool {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	if last, ok := am.lastSeen[userID]; ok && now.Sub(last) < minCommandInterval {
		return false
	}
	am.lastSeen[userID] = now
	return true
}
