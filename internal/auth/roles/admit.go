package roles

import "strings"

// IsAdmitted решает вопрос о допуске к именованной возможности.
// Допуск даётся, если ЛЮБАЯ роль из aggregated (без учёта регистра)
// совпадает с любым именем из allowedRoles, ИЛИ username (без учёта
// регистра) совпадает с записью из fallbackUsernames.
//
// Двухканальная политика сознательная: роли — основной путь,
// имя пользователя — аварийный люк оператора на случай токена без ролей.
// Регистронезависимость здесь НЕ распространяется на B2B-проверку
// (Resolution.Has / verify) — это две независимо развивавшиеся политики.
func IsAdmitted(aggregated []string, username string, allowedRoles, fallbackUsernames []string) bool {
	for _, have := range aggregated {
		for _, want := range allowedRoles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}

	for _, fallback := range fallbackUsernames {
		if strings.EqualFold(username, fallback) {
			return true
		}
	}

	return false
}
