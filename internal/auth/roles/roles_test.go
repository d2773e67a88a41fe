package roles

import (
	"reflect"
	"testing"

	"github.com/arturkryukov/carrental/internal/auth/token"
)

// TestResolve_AllSources проверяет агрегацию из трёх источников.
func TestResolve_AllSources(t *testing.T) {
	claims := token.Claims{
		DirectRoles: token.RoleList{"admin", "user"},
		RealmAccess: &token.RealmAccess{Roles: token.RoleList{"offline_access"}},
		ResourceAccess: map[string]token.ClientAccess{
			"frontend-ssr": {Roles: token.RoleList{"viewer"}},
		},
	}

	res := Resolve(claims)

	expected := []string{"admin", "user", "offline_access", "frontend-ssr:viewer"}
	if !reflect.DeepEqual(res.Roles, expected) {
		t.Errorf("ожидалось %v, получено %v", expected, res.Roles)
	}

	if !reflect.DeepEqual(res.Direct, []string{"admin", "user"}) {
		t.Errorf("ожидалась разбивка Direct, получено %v", res.Direct)
	}
	if !reflect.DeepEqual(res.Realm, []string{"offline_access"}) {
		t.Errorf("ожидалась разбивка Realm, получено %v", res.Realm)
	}
	if !reflect.DeepEqual(res.Client["frontend-ssr"], []string{"viewer"}) {
		t.Errorf("ожидалась разбивка Client, получено %v", res.Client)
	}
}

// TestResolve_Dedupe проверяет дедупликацию по точному совпадению.
func TestResolve_Dedupe(t *testing.T) {
	claims := token.Claims{
		DirectRoles: token.RoleList{"admin", "admin"},
		RealmAccess: &token.RealmAccess{Roles: token.RoleList{"admin", "Admin"}},
	}

	res := Resolve(claims)

	// "admin" схлопывается, "Admin" (другой регистр) остаётся отдельной
	expected := []string{"admin", "Admin"}
	if !reflect.DeepEqual(res.Roles, expected) {
		t.Errorf("ожидалось %v, получено %v", expected, res.Roles)
	}
}

// TestResolve_ClientPrefix проверяет префикс clientID для клиентских ролей.
func TestResolve_ClientPrefix(t *testing.T) {
	claims := token.Claims{
		RealmAccess: &token.RealmAccess{Roles: token.RoleList{"b2b"}},
		ResourceAccess: map[string]token.ClientAccess{
			"b2b-portal": {Roles: token.RoleList{"b2b"}},
		},
	}

	res := Resolve(claims)

	// Realm "b2b" и клиентская "b2b-portal:b2b" не пересекаются
	if !res.Has("b2b") {
		t.Error("ожидалась роль b2b")
	}
	if !res.Has("b2b-portal:b2b") {
		t.Error("ожидалась роль b2b-portal:b2b")
	}
	if len(res.Roles) != 2 {
		t.Errorf("ожидалось 2 роли, получено %d", len(res.Roles))
	}
}

// TestResolve_Empty проверяет пустые claims.
func TestResolve_Empty(t *testing.T) {
	res := Resolve(token.Claims{})

	if len(res.Roles) != 0 {
		t.Errorf("ожидался пустой набор, получено %v", res.Roles)
	}
	if res.Has("admin") {
		t.Error("Has не должна находить роли в пустом наборе")
	}
}

// TestResolution_Has проверяет регистрозависимое членство.
func TestResolution_Has(t *testing.T) {
	res := Resolution{Roles: []string{"admin", "b2b"}}

	if !res.Has("admin") {
		t.Error("ожидалось членство admin")
	}
	if res.Has("ADMIN") {
		t.Error("Has должна быть регистрозависимой")
	}
	if res.Has("operator") {
		t.Error("не ожидалось членство operator")
	}
}
