// Пакет roles — агрегация ролей из всех источников токена и решение
// о допуске. Resolve работает над декодированным (не обязательно
// проверенным) payload; проверка подписи — забота вызывающего.
package roles

import (
	"github.com/arturkryukov/carrental/internal/auth/token"
)

// Resolution — результат агрегации ролей.
// Roles — дедуплицированный союз всех источников; дедупликация по точному
// совпадению строк (case folding выполняется только при сравнении в IsAdmitted).
// Остальные поля — разбивка по источникам для диагностических страниц.
type Resolution struct {
	// Roles — агрегированный набор. Порядок — порядок первого появления.
	Roles []string
	// Direct — роли из плоского claim role.
	Direct []string
	// Realm — роли из realm_access.roles.
	Realm []string
	// Client — роли по клиентам из resource_access (без префикса clientID).
	Client map[string][]string
}

// Has проверяет точное (регистрозависимое) членство роли в агрегированном
// наборе. Используется B2B-политикой и resource server (политика,
// исторически независимая от регистронезависимой админской — не объединять).
func (r Resolution) Has(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Resolve агрегирует роли из трёх независимых источников claims:
//   - плоский claim role (legacy);
//   - realm_access.roles;
//   - resource_access.<clientID>.roles, каждая с префиксом "<clientID>:".
//
// Чистая функция. Регистр ролей сохраняется как в источнике.
func Resolve(c token.Claims) Resolution {
	res := Resolution{}
	seen := make(map[string]struct{})

	add := func(role string) {
		if _, ok := seen[role]; ok {
			return
		}
		seen[role] = struct{}{}
		res.Roles = append(res.Roles, role)
	}

	if len(c.DirectRoles) > 0 {
		res.Direct = append(res.Direct, c.DirectRoles...)
		for _, r := range c.DirectRoles {
			add(r)
		}
	}

	if c.RealmAccess != nil && len(c.RealmAccess.Roles) > 0 {
		res.Realm = append(res.Realm, c.RealmAccess.Roles...)
		for _, r := range c.RealmAccess.Roles {
			add(r)
		}
	}

	for clientID, access := range c.ResourceAccess {
		if len(access.Roles) == 0 {
			continue
		}
		if res.Client == nil {
			res.Client = make(map[string][]string)
		}
		res.Client[clientID] = append(res.Client[clientID], access.Roles...)
		for _, r := range access.Roles {
			add(clientID + ":" + r)
		}
	}

	return res
}
