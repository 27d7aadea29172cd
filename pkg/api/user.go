package api

// UpdateUserRequest представляет частичное обновление пользователя.
// nil означает «поле не менять». Поля role и is_blocked учитываются
// только на административном пути PATCH /user/{id}; при
// самостоятельном редактировании PATCH /user/me они игнорируются.
type UpdateUserRequest struct {
	Name        *string `json:"name,omitempty"`
	Surname     *string `json:"surname,omitempty"`
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Role        *string `json:"role,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
	IsBlocked   *bool   `json:"is_blocked,omitempty"`
}

// ImageResponse представляет ответ с presigned ссылкой на изображение
type ImageResponse struct {
	ImageURL string `json:"image_url"`
}
