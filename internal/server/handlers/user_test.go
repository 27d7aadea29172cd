package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/pkg/api"
)

func authedRequest(t *testing.T, method, target string, body io.Reader, principal *models.User) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(ContextWithPrincipal(req.Context(), principal))
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestMe(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/user/me", nil, user)
	w := httptest.NewRecorder()
	env.user.Me(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[models.User](t, w.Body)
	assert.Equal(t, user.ID, resp.ID)
	assert.Equal(t, "jankowalski", resp.Username)
}

func TestMe_NoPrincipal(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	w := httptest.NewRecorder()
	env.user.Me(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodPatch, "/user/me", jsonBody(t, api.UpdateUserRequest{
		Name: strPtr("Janusz"),
	}), user)
	w := httptest.NewRecorder()
	env.user.UpdateMe(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[models.User](t, w.Body)
	assert.Equal(t, "Janusz", resp.Name)
	assert.Equal(t, "Kowalski", resp.Surname)
}

func TestUpdateMe_IgnoresPrivilegedFields(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodPatch, "/user/me", jsonBody(t, api.UpdateUserRequest{
		Name:      strPtr("Janusz"),
		Role:      strPtr(string(models.RoleAdmin)),
		IsBlocked: boolPtr(true),
	}), user)
	w := httptest.NewRecorder()
	env.user.UpdateMe(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Эскалация привилегий через self-update невозможна
	resp := decodeJSON[models.User](t, w.Body)
	assert.Equal(t, models.RoleUser, resp.Role)
	assert.False(t, resp.IsBlocked)

	stored := env.store.users[user.ID]
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.False(t, stored.IsBlocked)
}

func TestUpdateMe_ValidationError(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodPatch, "/user/me", jsonBody(t, api.UpdateUserRequest{
		Email: strPtr("not-an-email"),
	}), user)
	w := httptest.NewRecorder()
	env.user.UpdateMe(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMe(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)
	user.ImagePath = "user-images/id-jankowalski/profile.png"

	req := authedRequest(t, http.MethodDelete, "/user/me", nil, user)
	w := httptest.NewRecorder()
	env.user.DeleteMe(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, env.store.users, user.ID)

	// Осиротевшее изображение удалено
	assert.Contains(t, env.images.deleted, "user-images/id-jankowalski/profile.png")
}

func TestGetByID(t *testing.T) {
	groupA := int64Ptr(1)
	groupB := int64Ptr(2)

	tests := []struct {
		name       string
		actorRole  models.Role
		actorGroup *int64
		targetSelf bool
		target     *int64
		wantCode   int
	}{
		{
			name:      "admin views anyone",
			actorRole: models.RoleAdmin,
			target:    groupB,
			wantCode:  http.StatusOK,
		},
		{
			name:       "moderator views same group",
			actorRole:  models.RoleModerator,
			actorGroup: groupA,
			target:     groupA,
			wantCode:   http.StatusOK,
		},
		{
			name:      "groupless moderator views groupless target",
			actorRole: models.RoleModerator,
			wantCode:  http.StatusOK,
		},
		{
			name:       "moderator rejected for other group",
			actorRole:  models.RoleModerator,
			actorGroup: groupA,
			target:     groupB,
			wantCode:   http.StatusForbidden,
		},
		{
			name:      "user rejected for others",
			actorRole: models.RoleUser,
			target:    groupA,
			wantCode:  http.StatusForbidden,
		},
		{
			name:       "user views self",
			actorRole:  models.RoleUser,
			targetSelf: true,
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			actor := env.addUser(t, "actor", tt.actorRole)
			actor.GroupID = tt.actorGroup

			targetID := actor.ID
			if !tt.targetSelf {
				target := env.addUser(t, "target", models.RoleUser)
				target.GroupID = tt.target
				targetID = target.ID
			}

			req := authedRequest(t, http.MethodGet, "/user/"+targetID, nil, actor)
			req.SetPathValue("id", targetID)

			w := httptest.NewRecorder()
			env.user.GetByID(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	env := newTestEnv()
	actor := env.addUser(t, "actor", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/user/missing", nil, actor)
	req.SetPathValue("id", "missing")

	w := httptest.NewRecorder()
	env.user.GetByID(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateByID_AdminOnly(t *testing.T) {
	for _, role := range []models.Role{models.RoleUser, models.RoleModerator} {
		t.Run(string(role), func(t *testing.T) {
			env := newTestEnv()
			actor := env.addUser(t, "actor", role)
			target := env.addUser(t, "target", models.RoleUser)

			req := authedRequest(t, http.MethodPatch, "/user/"+target.ID, jsonBody(t, api.UpdateUserRequest{
				Name: strPtr("Janusz"),
			}), actor)
			req.SetPathValue("id", target.ID)

			w := httptest.NewRecorder()
			env.user.UpdateByID(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestUpdateByID_AdminChangesRoleAndBlock(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	target := env.addUser(t, "target", models.RoleUser)

	req := authedRequest(t, http.MethodPatch, "/user/"+target.ID, jsonBody(t, api.UpdateUserRequest{
		Role:      strPtr(string(models.RoleModerator)),
		IsBlocked: boolPtr(true),
	}), admin)
	req.SetPathValue("id", target.ID)

	w := httptest.NewRecorder()
	env.user.UpdateByID(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[models.User](t, w.Body)
	assert.Equal(t, models.RoleModerator, resp.Role)
	assert.True(t, resp.IsBlocked)
}

func TestUpdateByID_UnknownRole(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	target := env.addUser(t, "target", models.RoleUser)

	req := authedRequest(t, http.MethodPatch, "/user/"+target.ID, jsonBody(t, api.UpdateUserRequest{
		Role: strPtr("SUPERUSER"),
	}), admin)
	req.SetPathValue("id", target.ID)

	w := httptest.NewRecorder()
	env.user.UpdateByID(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateByID_NotFound(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser(t, "admin", models.RoleAdmin)

	req := authedRequest(t, http.MethodPatch, "/user/missing", jsonBody(t, api.UpdateUserRequest{
		Name: strPtr("Janusz"),
	}), admin)
	req.SetPathValue("id", "missing")

	w := httptest.NewRecorder()
	env.user.UpdateByID(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList_PlainUserRejected(t *testing.T) {
	env := newTestEnv()
	actor := env.addUser(t, "actor", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/users", nil, actor)
	w := httptest.NewRecorder()
	env.user.List(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestList_Admin(t *testing.T) {
	env := newTestEnv()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	env.addUser(t, "other", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/users?page=2&limit=10&sort_by=name&order_by=desc", nil, admin)
	w := httptest.NewRecorder()
	env.user.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	users := decodeJSON[[]*models.User](t, w.Body)
	assert.Len(t, users, 2)

	// Query параметры доходят до хранилища, admin не ограничен группой
	require.Len(t, env.store.listCalls, 1)
	opts := env.store.listCalls[0]
	assert.Equal(t, 2, opts.Page)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, storage.SortByName, opts.SortBy)
	assert.Equal(t, storage.OrderDesc, opts.Order)
	assert.Nil(t, opts.GroupID)
}

func TestList_ModeratorScopedToGroup(t *testing.T) {
	env := newTestEnv()
	moderator := env.addUser(t, "moderator", models.RoleModerator)
	moderator.GroupID = int64Ptr(7)

	member := env.addUser(t, "member", models.RoleUser)
	member.GroupID = int64Ptr(7)

	outsider := env.addUser(t, "outsider", models.RoleUser)
	outsider.GroupID = int64Ptr(8)

	req := authedRequest(t, http.MethodGet, "/users", nil, moderator)
	w := httptest.NewRecorder()
	env.user.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	users := decodeJSON[[]*models.User](t, w.Body)
	for _, u := range users {
		require.NotNil(t, u.GroupID)
		assert.Equal(t, int64(7), *u.GroupID)
	}

	require.Len(t, env.store.listCalls, 1)
	require.NotNil(t, env.store.listCalls[0].GroupID)
	assert.Equal(t, int64(7), *env.store.listCalls[0].GroupID)
}

func TestList_GrouplessModerator(t *testing.T) {
	env := newTestEnv()
	moderator := env.addUser(t, "moderator", models.RoleModerator)
	env.addUser(t, "member", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/users", nil, moderator)
	w := httptest.NewRecorder()
	env.user.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	users := decodeJSON[[]*models.User](t, w.Body)
	assert.Empty(t, users)

	// Хранилище не опрашивается: модератору без группы нечего показать
	assert.Empty(t, env.store.listCalls)
}

// multipartImage builds a multipart body with a single file part
func multipartImage(t *testing.T, contentType string, payload []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="profile.png"`)
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	body, contentType := multipartImage(t, "image/png", []byte("fake png bytes"))
	req := authedRequest(t, http.MethodPost, "/user/me/image", body, user)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	env.user.UploadImage(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[api.ImageResponse](t, w.Body)
	assert.Contains(t, resp.ImageURL, "user-images/id-jankowalski/profile.png")

	// Ключ сохранен в записи пользователя
	stored := env.store.users[user.ID]
	assert.Equal(t, "user-images/id-jankowalski/profile.png", stored.ImagePath)
}

func TestUploadImage_RejectsContentType(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	body, contentType := multipartImage(t, "application/pdf", []byte("%PDF-1.4"))
	req := authedRequest(t, http.MethodPost, "/user/me/image", body, user)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	env.user.UploadImage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImage_MissingFile(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := authedRequest(t, http.MethodPost, "/user/me/image", &buf, user)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	env.user.UploadImage(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadImage_ReplacesPreviousKey(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)
	user.ImagePath = "user-images/id-jankowalski/profile.gif"

	body, contentType := multipartImage(t, "image/png", []byte("fake png bytes"))
	req := authedRequest(t, http.MethodPost, "/user/me/image", body, user)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	env.user.UploadImage(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	// Старый ключ с другим расширением удален
	assert.Contains(t, env.images.deleted, "user-images/id-jankowalski/profile.gif")
}

func TestGetImage(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)
	user.ImagePath = "user-images/id-jankowalski/profile.png"

	req := authedRequest(t, http.MethodGet, "/user/me/image", nil, user)
	w := httptest.NewRecorder()
	env.user.GetImage(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeJSON[api.ImageResponse](t, w.Body)
	assert.Contains(t, resp.ImageURL, "profile.png")
}

func TestGetImage_NoImage(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodGet, "/user/me/image", nil, user)
	w := httptest.NewRecorder()
	env.user.GetImage(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteImage(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)
	user.ImagePath = "user-images/id-jankowalski/profile.png"

	req := authedRequest(t, http.MethodDelete, "/user/me/image", nil, user)
	w := httptest.NewRecorder()
	env.user.DeleteImage(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, env.images.deleted, "user-images/id-jankowalski/profile.png")

	stored := env.store.users[user.ID]
	assert.Empty(t, stored.ImagePath)
}

func TestDeleteImage_NoImage(t *testing.T) {
	env := newTestEnv()
	user := env.addUser(t, "jankowalski", models.RoleUser)

	req := authedRequest(t, http.MethodDelete, "/user/me/image", nil, user)
	w := httptest.NewRecorder()
	env.user.DeleteImage(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
