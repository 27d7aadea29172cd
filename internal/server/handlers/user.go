package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/authz"
	"github.com/iudanet/usermgmt/internal/server/objstore"
	"github.com/iudanet/usermgmt/internal/server/service"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/pkg/api"
)

// UserHandler обрабатывает запросы к записям пользователей
type UserHandler struct {
	logger *slog.Logger
	users  *service.UserService
	images objstore.ImageStore
}

// NewUserHandler создает новый handler для пользователей
func NewUserHandler(logger *slog.Logger, users *service.UserService, images objstore.ImageStore) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
		images: images,
	}
}

// Me обрабатывает GET /user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sendJSON(h.logger, w, principal, http.StatusOK)
}

// UpdateMe обрабатывает PATCH /user/me
// Самостоятельное редактирование: поля role и is_blocked в теле
// запроса игнорируются, эскалация привилегий невозможна
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.users.UpdateSelf(ctx, principal, service.UpdateSelfInput{
		Name:        req.Name,
		Surname:     req.Surname,
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.writeUpdateError(ctx, w, err)
		return
	}

	sendJSON(h.logger, w, updated, http.StatusOK)
}

// DeleteMe обрабатывает DELETE /user/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.users.Delete(ctx, principal.ID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to delete user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Осиротевшее изображение удаляется по возможности:
	// учетная запись уже удалена, ошибка здесь не меняет ответ
	if principal.ImagePath != "" {
		if err := h.images.DeleteUserImage(ctx, principal.ImagePath); err != nil {
			h.logger.WarnContext(ctx, "failed to delete orphaned image", slog.Any("error", err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetByID обрабатывает GET /user/{id}
// Доступ определяется ролевой политикой CanViewUser
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	target, err := h.users.Get(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(h.logger, w, "user not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !authz.CanViewUser(principal, target) {
		sendError(h.logger, w, "not enough permissions", http.StatusForbidden)
		return
	}

	sendJSON(h.logger, w, target, http.StatusOK)
}

// UpdateByID обрабатывает PATCH /user/{id}
// Административное редактирование, доступно только ADMIN
func (h *UserHandler) UpdateByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !authz.CanEditUser(principal) {
		sendError(h.logger, w, "not enough permissions", http.StatusForbidden)
		return
	}

	var req api.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := service.AdminUpdateInput{
		Name:        req.Name,
		Surname:     req.Surname,
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		GroupID:     req.GroupID,
		IsBlocked:   req.IsBlocked,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		in.Role = &role
	}

	updated, err := h.users.AdminUpdate(ctx, r.PathValue("id"), in)
	if err != nil {
		h.writeUpdateError(ctx, w, err)
		return
	}

	sendJSON(h.logger, w, updated, http.StatusOK)
}

// List обрабатывает GET /users
// Доступно ADMIN (все пользователи) и MODERATOR (только своя группа)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !authz.CanListUsers(principal) {
		sendError(h.logger, w, "not enough permissions", http.StatusForbidden)
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	users, err := h.users.List(ctx, principal, service.ListInput{
		Page:       page,
		Limit:      limit,
		NameFilter: query.Get("filter_by_name"),
		SortBy:     query.Get("sort_by"),
		Order:      query.Get("order_by"),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, users, http.StatusOK)
}

// UploadImage обрабатывает POST /user/me/image
// multipart поле file; допустимы jpeg, png, gif размером до 5MB
func (h *UserHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, objstore.MaxImageSize+1024)
	if err := r.ParseMultipartForm(objstore.MaxImageSize); err != nil {
		sendError(h.logger, w, "file too large or malformed multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		sendError(h.logger, w, "file field is required", http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	oldKey := principal.ImagePath

	key, err := h.images.UploadUserImage(ctx, principal.ID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, objstore.ErrUploadRejected) {
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to upload image", slog.Any("error", err))
		sendError(h.logger, w, "image storage unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := h.users.SetImage(ctx, principal, key); err != nil {
		h.logger.ErrorContext(ctx, "failed to save image path", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Прежнее изображение с другим ключом (другой тип файла)
	// удаляется по возможности
	if oldKey != "" && oldKey != key {
		if err := h.images.DeleteUserImage(ctx, oldKey); err != nil {
			h.logger.WarnContext(ctx, "failed to delete previous image", slog.Any("error", err))
		}
	}

	url, err := h.images.ImageURL(ctx, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to presign image url", slog.Any("error", err))
		sendError(h.logger, w, "image storage unavailable", http.StatusServiceUnavailable)
		return
	}

	sendJSON(h.logger, w, api.ImageResponse{ImageURL: url}, http.StatusOK)
}

// GetImage обрабатывает GET /user/me/image
func (h *UserHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if principal.ImagePath == "" {
		sendError(h.logger, w, "no profile image", http.StatusNotFound)
		return
	}

	url, err := h.images.ImageURL(ctx, principal.ImagePath)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to presign image url", slog.Any("error", err))
		sendError(h.logger, w, "image storage unavailable", http.StatusServiceUnavailable)
		return
	}

	sendJSON(h.logger, w, api.ImageResponse{ImageURL: url}, http.StatusOK)
}

// DeleteImage обрабатывает DELETE /user/me/image
func (h *UserHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		sendAuthError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if principal.ImagePath == "" {
		sendError(h.logger, w, "no profile image", http.StatusNotFound)
		return
	}

	if err := h.images.DeleteUserImage(ctx, principal.ImagePath); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete image", slog.Any("error", err))
		sendError(h.logger, w, "image storage unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := h.users.SetImage(ctx, principal, ""); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear image path", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeUpdateError отображает ошибки операций редактирования
// в HTTP статусы
func (h *UserHandler) writeUpdateError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrUserNotFound):
		sendError(h.logger, w, "user not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrUserAlreadyExists):
		sendError(h.logger, w, "email, username or phone number already taken", http.StatusConflict)
	case errors.Is(err, storage.ErrGroupNotFound):
		sendError(h.logger, w, "referenced group does not exist", http.StatusBadRequest)
	default:
		h.logger.ErrorContext(ctx, "failed to update user", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}
