package tests

import (
	"net/http"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/user"
)

func TestUserAPI_me(t *testing.T) {
	usr, token := createAccount(t, "Me", "me@test.cd", user.RoleStudent, "s3cr3t-pwd")

	t.Run("no token", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		req, rec := newRequest(http.MethodGet, "/v1/users/me")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("own profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.ID != usr.ID || got.Email != usr.Email {
			t.Errorf("profile mismatch: %+v", got)
		}
	})

	t.Run("update keeps immutable fields", func(t *testing.T) {
		body := marchallObj(t, user.UpdateProfile{Bio: null.StringFrom("Gopher")})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.Bio.String != "Gopher" {
			t.Errorf("Bio = %q, want Gopher", got.Bio.String)
		}
		if got.Email != usr.Email || got.Role != usr.Role || got.Name != usr.Name {
			t.Errorf("immutable fields changed: %+v", got)
		}
	})
}

func TestUserAPI_adminListing(t *testing.T) {
	_, studentToken := createAccount(t, "Pleb", "pleb@test.cd", user.RoleStudent, "s3cr3t-pwd")
	admin, adminToken := createAccount(t, "Root", "root@test.cd", user.RoleAdmin, "s3cr3t-pwd")

	t.Run("students are denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	t.Run("admins list users", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users?role=admin", adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var users []user.User
		decodeBody(t, rec, &users)
		if len(users) == 0 {
			t.Fatal("no users returned")
		}
		for _, u := range users {
			if u.Role != user.RoleAdmin {
				t.Errorf("role filter leaked %+v", u)
			}
		}
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+admin.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.ID != admin.ID {
			t.Errorf("profile mismatch: %+v", got)
		}
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/nope", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
