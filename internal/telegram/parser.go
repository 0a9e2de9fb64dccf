package telegram

import (
	"fmt"
	"strings"

	"github.com/edwinv/session-bot/internal/domain"
)

// ParseAPIKeys разбирает аргументы /setapikeys: ровно ключ и секрет
func ParseAPIKeys(args string) (apiKey, apiSecret string, err error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("%w: expected <APIKEY> <SECRETKEY>, got %d arguments",
			domain.ErrInvalidInput, len(fields))
	}
	return fields[0], fields[1], nil
}
